package main

import (
	"fmt"

	"github.com/rbaliyan/privmsg"
	"github.com/spf13/cobra"
)

func (c *cli) sendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send <to> <subject> <body>",
		Short: "Compose a new message",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := privmsg.ParsePrincipalRef(args[0])
			if err != nil {
				return err
			}
			msg, err := c.mailbox().Send(cmd.Context(), to, privmsg.ComposeForm{Subject: args[1], Body: args[2]})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), msg.GetID())
			return err
		},
	}
}

func (c *cli) replyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reply <id> <subject> <body>",
		Short: "Reply to a message",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := c.mailbox().Reply(cmd.Context(), args[0], privmsg.ComposeForm{Subject: args[1], Body: args[2]})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), msg.GetID())
			return err
		},
	}
}
