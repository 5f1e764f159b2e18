package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"nutrichat/internal/chat"
	"nutrichat/internal/history"
	"nutrichat/internal/markup"
	"nutrichat/internal/models"
)

func init() {
	historyCmd.Flags().Bool("sessions", false, "group turns by the session that produced them")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the saved conversation",
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
		client := history.NewClient(api)
		out := cmd.OutOrStdout()

		if grouped, _ := cmd.Flags().GetBool("sessions"); grouped {
			sessions, err := client.Sessions(ctx)
			if err != nil {
				return err
			}
			for _, s := range sessions {
				fmt.Fprintf(out, "── session %s (%s turns)\n", s.SessionKey, humanize.Comma(int64(len(s.Messages))))
				for _, turn := range s.Messages {
					fmt.Fprintf(out, "  %s  %s\n", humanize.Time(turn.Timestamp), turn.UserText)
				}
			}
			return nil
		}

		msgs, err := chat.NewReconciler(client, markup.NewTerminal()).Reconcile(ctx, identity)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			fmt.Fprintln(out, "No conversation yet.")
			return nil
		}
		now := time.Now()
		for _, msg := range msgs {
			fmt.Fprintln(out, formatMessage(msg, now))
		}
		return nil
	},
}

func formatMessage(msg models.Message, now time.Time) string {
	who := "You"
	if msg.Role == models.RoleAssistant {
		who = "NUTRI-BOT"
	}
	return fmt.Sprintf("[%s] %s:\n%s\n", humanize.RelTime(msg.CreatedAt, now, "ago", "from now"), who, msg.Content)
}
