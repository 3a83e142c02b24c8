package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/entrhq/switchboard/pkg/agent/graph"
	"github.com/entrhq/switchboard/pkg/agent/observe"
	"github.com/entrhq/switchboard/pkg/app"
	repl "github.com/entrhq/switchboard/pkg/executor/cli"
)

const defaultThread = "default"

func newChatCmd(c *cli) *cobra.Command {
	var thread, user string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session on a thread",
		Long: `Starts a REPL on one conversation thread. Routing decisions and
capability calls are shown as they happen.

Commands inside the session:
  /copy    copy the last answer to the clipboard
  /memory  show the stored profile of the current user
  exit     leave (quit works too)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			events := observe.NewChannel(256)
			a, err := app.New(ctx, c.cfg, c.appOptions(app.WithObserver(events))...)
			if err != nil {
				return err
			}
			defer a.Close()

			executor := repl.NewExecutor(a, thread,
				repl.WithUser(user),
				repl.WithEvents(events.Events()),
				repl.WithProfiles(a.Profiles()),
				repl.WithShowEvents(!quiet),
				repl.WithReader(cmd.InOrStdin()),
				repl.WithWriter(cmd.OutOrStdout()),
			)
			if err := executor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&thread, "thread", "t", defaultThread, "Conversation thread id")
	cmd.Flags().StringVarP(&user, "user", "u", "", "User id for profile memory (defaults to the thread id)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide routing and capability progress")
	return cmd
}

func newAskCmd(c *cli) *cobra.Command {
	var thread, user string

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Run one turn and print the answer",
		Example: `  switchboard ask --thread t1 "remember that I prefer short answers"
  switchboard ask --thread t1 "what is the latest Go release?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, c.cfg, c.appOptions()...)
			if err != nil {
				return err
			}
			defer a.Close()

			answer, err := a.Submit(ctx, graph.Turn{ThreadID: thread, UserID: user, Text: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Content)
			return nil
		},
	}
	cmd.Flags().StringVarP(&thread, "thread", "t", defaultThread, "Conversation thread id")
	cmd.Flags().StringVarP(&user, "user", "u", "", "User id for profile memory (defaults to the thread id)")
	return cmd
}
