package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"nutrichat/internal/advice"
	"nutrichat/internal/chat"
	"nutrichat/internal/history"
	"nutrichat/internal/markup"
	"nutrichat/internal/tui"
)

// pending saves get this long after the window closes
const flushTimeout = 5 * time.Second

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open an interactive conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		identity, api, err := env.signIn(ctx)
		if err != nil {
			return err
		}
		generator, err := advice.New(ctx, env.cfg, api.WithoutTimeout())
		if err != nil {
			return err
		}

		session, err := chat.NewSession(ctx, identity, history.NewClient(api), generator, chat.Config{
			Translator:   markup.NewTerminal(),
			ReplyTimeout: env.cfg.Advice.Timeout(),
			Logger:       env.logger,
			OnPersistError: func(perr *chat.PersistError) {
				env.logger.Error("conversation turn lost", "text", perr.Turn.Text, "error", perr.Err)
			},
		})
		if err != nil {
			return err
		}
		env.logger.Info("session started", "session", session.ID())

		runErr := tui.Run(session, identity.Username)
		session.Close()

		flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := session.Wait(flushCtx); err != nil {
			env.logger.Warn("unsaved turns dropped on exit", "error", err)
		}
		return runErr
	},
}
