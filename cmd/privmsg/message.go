package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rbaliyan/privmsg"
	"github.com/spf13/cobra"
)

func (c *cli) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a message without marking it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := c.mailbox().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printMessage(cmd.OutOrStdout(), msg)
		},
	}
}

func (c *cli) readCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Show a message and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := c.mailbox().Read(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printMessage(cmd.OutOrStdout(), msg)
		},
	}
}

func (c *cli) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Move messages to trash",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return c.mailbox().Delete(cmd.Context(), args[0])
			}
			res, err := c.mailbox().BulkDelete(cmd.Context(), args)
			if err != nil {
				return err
			}
			return res.Err()
		},
	}
}

func (c *cli) restoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a message from trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.mailbox().Restore(cmd.Context(), args[0])
		},
	}
}

func printMessage(out io.Writer, m privmsg.Message) error {
	w := tabwriter.NewWriter(out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", m.GetID())
	fmt.Fprintf(w, "From:\t%s\n", m.GetSender())
	fmt.Fprintf(w, "To:\t%s\n", m.GetRecipient())
	fmt.Fprintf(w, "Sent:\t%s\n", m.GetSentAt().Local().Format(time.DateTime))
	if t := m.GetReadAt(); t != nil {
		fmt.Fprintf(w, "Read:\t%s\n", t.Local().Format(time.DateTime))
	}
	if m.GetParentID() != "" {
		fmt.Fprintf(w, "In reply to:\t%s\n", m.GetParentID())
	}
	fmt.Fprintf(w, "Subject:\t%s\n", m.GetSubject())
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\n%s\n", m.GetBody())
	return err
}
