package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rbaliyan/privmsg"
	"github.com/spf13/cobra"
)

// listFlags are shared by the folder and replies commands.
type listFlags struct {
	limit  int
	cursor string
	desc   bool
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "maximum messages to show (0 uses the configured default)")
	cmd.Flags().StringVar(&f.cursor, "after", "", "continue after this message id")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "newest first")
}

func (f *listFlags) options() (privmsg.ListOptions, error) {
	if f.limit < 0 {
		return privmsg.ListOptions{}, fmt.Errorf("invalid limit %d", f.limit)
	}
	opts := privmsg.ListOptions{Limit: f.limit, StartAfter: f.cursor, SortOrder: privmsg.SortAsc}
	if f.desc {
		opts.SortOrder = privmsg.SortDesc
	}
	return opts, nil
}

func (c *cli) folderCommand(name, short string) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			mb := c.mailbox()
			var list privmsg.MessageList
			switch name {
			case "inbox":
				list, err = mb.Inbox(cmd.Context(), opts)
			case "outbox":
				list, err = mb.Outbox(cmd.Context(), opts)
			default:
				list, err = mb.Trash(cmd.Context(), opts)
			}
			if err != nil {
				return err
			}
			return printList(cmd.OutOrStdout(), list)
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) repliesCommand() *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "replies <id>",
		Short: "List replies to a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			list, err := c.mailbox().Replies(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return printList(cmd.OutOrStdout(), list)
		},
	}
	flags.register(cmd)
	return cmd
}

func printList(out io.Writer, list privmsg.MessageList) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tTO\tSENT\tNEW\tREPLIED\tSUBJECT")
	for _, m := range list.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.GetID(),
			m.GetSender(),
			m.GetRecipient(),
			m.GetSentAt().Local().Format(time.DateTime),
			yesNo(m.IsNew()),
			yesNo(m.IsReplied()),
			m.GetSubject(),
		)
	}
	if list.HasMore() {
		fmt.Fprintf(w, "(%d of %d shown, next: --after %s)\n", len(list.All()), list.Total(), list.NextCursor())
	}
	return w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
