package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *cli) unreadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Count unread inbox messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := c.mailbox().UnreadCount(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}
}

func (c *cli) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show folder counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.mailbox().Stats(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INBOX\tUNREAD\tOUTBOX\tTRASH")
			fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", s.Inbox, s.Unread, s.Outbox, s.Trash)
			return w.Flush()
		},
	}
}
