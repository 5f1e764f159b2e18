package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nutrichat/internal/auth"
)

func init() {
	rootCmd.AddCommand(registerCmd)
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account on the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.cfg.Client.Username == "" || env.cfg.Client.Password == "" {
			return fmt.Errorf("username and password are required")
		}
		user, err := auth.NewClient(env.api).Register(cmd.Context(), env.cfg.Client.Username, env.cfg.Client.Password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}
