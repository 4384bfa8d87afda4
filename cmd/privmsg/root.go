package main

import (
	"errors"
	"io"
	"os"

	"github.com/rbaliyan/privmsg"
	"github.com/rbaliyan/privmsg/internal/config"
	"github.com/spf13/cobra"
)

// cli carries global flags and the app wired for the running command.
type cli struct {
	configPath string
	as         string
	stderr     io.Writer

	app *app
	me  privmsg.PrincipalRef
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "privmsg",
		Short: "Private messages between principals",
		Long: `privmsg sends, lists and manages private messages stored in the
configured backend. Every command acts as the principal given by --as.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errors.New("missing command")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv("PRIVMSG_CONFIG"), "path to configuration file")
	root.PersistentFlags().StringVar(&c.as, "as", os.Getenv("PRIVMSG_AS"), "acting principal (type:id)")

	root.AddCommand(
		c.sendCommand(),
		c.replyCommand(),
		c.folderCommand("inbox", "List received messages"),
		c.folderCommand("outbox", "List sent messages"),
		c.folderCommand("trash", "List deleted messages"),
		c.repliesCommand(),
		c.showCommand(),
		c.readCommand(),
		c.deleteCommand(),
		c.restoreCommand(),
		c.unreadCommand(),
		c.statsCommand(),
	)
	return root
}

// setup loads configuration and connects the service for subcommands.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if !cmd.HasParent() {
		return nil
	}
	if c.as == "" {
		return errors.New("--as is required")
	}
	me, err := privmsg.ParsePrincipalRef(c.as)
	if err != nil {
		return err
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, newLogger(cfg.Log, c.stderr))
	if err != nil {
		return err
	}
	c.app, c.me = a, me
	return nil
}

func (c *cli) mailbox() privmsg.Mailbox {
	return c.app.svc.Client(c.me)
}
