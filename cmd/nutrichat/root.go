package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"nutrichat/internal/apiclient"
	"nutrichat/internal/auth"
	"nutrichat/internal/config"
	"nutrichat/internal/logging"
	"nutrichat/internal/models"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "nutrichat",
	Short:   "Terminal client for the NUTRI-BOT nutrition assistant",
	Version: version,
}

// Execute runs the root command. It is called once by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SilenceUsage = true

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path (default is $NUTRICHAT_CONFIG or ./config.json)")
	rootCmd.PersistentFlags().String("server", "", "backend url, overrides client.server_url")
	rootCmd.PersistentFlags().StringP("username", "u", "", "account name, overrides client.username")
	rootCmd.PersistentFlags().StringP("password", "p", "", "account password, overrides client.password")
}

// clientEnv is what every subcommand needs: config, a logger and an api client.
type clientEnv struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
	api    *apiclient.Client
}

func (e *clientEnv) Close() error {
	return e.closer.Close()
}

// setup loads config, applies flag overrides and routes logs to a file so the
// terminal stays clean.
func setup(cmd *cobra.Command) (*clientEnv, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("server"); v != "" {
		cfg.Client.ServerURL = v
	}
	if v, _ := cmd.Flags().GetString("username"); v != "" {
		cfg.Client.Username = v
	}
	if v, _ := cmd.Flags().GetString("password"); v != "" {
		cfg.Client.Password = v
	}

	logCfg := cfg.BasicConfig.Log
	if logCfg.File == "" {
		logCfg.File = logging.DefaultFile()
	}
	logger, closer, err := logging.Init(logCfg, io.Discard)
	if err != nil {
		return nil, err
	}

	var httpClient *http.Client
	if timeout := cfg.Client.RequestTimeout(); timeout > 0 {
		httpClient = &http.Client{Timeout: timeout}
	}
	api := apiclient.New(cfg.Client.ServerURL, httpClient)
	return &clientEnv{cfg: cfg, logger: logger, closer: closer, api: api}, nil
}

// signIn authenticates against the backend and returns the identity plus an
// api client carrying its token.
func (e *clientEnv) signIn(ctx context.Context) (models.Identity, *apiclient.Client, error) {
	if e.cfg.Client.Username == "" || e.cfg.Client.Password == "" {
		return models.Identity{}, nil, fmt.Errorf("username and password are required (flags, client config or NUTRICHAT_USERNAME/NUTRICHAT_PASSWORD)")
	}
	identity, err := auth.NewClient(e.api).Authenticate(ctx, e.cfg.Client.Username, e.cfg.Client.Password)
	if err != nil {
		return models.Identity{}, nil, fmt.Errorf("sign in: %w", err)
	}
	e.logger.Info("signed in", "user_id", identity.UserID, "server", e.cfg.Client.ServerURL)
	return identity, e.api.WithToken(identity.Token), nil
}
