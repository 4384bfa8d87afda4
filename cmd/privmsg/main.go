// Command privmsg is a command-line client for a privmsg store.
//
//	privmsg --config privmsg.yaml --as user:1 send user:2 "Hi" "Hello"
//	privmsg --config privmsg.yaml --as user:2 inbox --limit 10
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "privmsg:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{stderr: stderr}
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		// The signal context may already be done; shutdown gets its own.
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if cerr := c.app.close(closeCtx); cerr != nil {
			c.app.logger.Error("shutdown failed", "error", cerr)
		}
	}
	return err
}
