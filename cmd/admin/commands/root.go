// Package commands implements the back-office admin CLI.
package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oksasatya/ngo-backoffice/config"
	"github.com/oksasatya/ngo-backoffice/internal/application/session"
	"github.com/oksasatya/ngo-backoffice/internal/infrastructure/hosted"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
)

var (
	serverURL string
	verbose   bool

	cfg    *config.Config
	logger *logrus.Logger

	rootCmd = &cobra.Command{
		Use:           "admin",
		Short:         "Back-office admin CLI",
		Long:          `Sign in, register and inspect back-office admin accounts against the hosted API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg = config.Load()
			if !cmd.Flag("server").Changed && os.Getenv("HOSTED_URL") != "" {
				serverURL = cfg.HostedURL
			}
			if verbose {
				logger = helpers.NewLogger(cfg.AppName+"-admin", "development")
			} else {
				logger = helpers.NewDiscardLogger()
			}
			return nil
		},
	}
)

// Execute adds all child commands to the root command and runs it.
func Execute() error { return rootCmd.Execute() }

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "back-office API base URL (HOSTED_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

func normalizedBase(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// openSession builds a hosted client seeded with saved tokens and a session store
// over it. The store is initialised; callers must call the returned cleanup.
func openSession(ctx context.Context) (*hosted.Client, *session.Store, func(), error) {
	base := normalizedBase(serverURL)
	client := hosted.New(base, logger)
	if t, ok := loadTokens(base); ok {
		client.Restore(t)
	}
	store := session.NewStore(client, logger)
	cleanup := func() {
		store.Close()
		client.Close()
	}
	if err := store.Initialize(ctx); err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return client, store, cleanup, nil
}

// persist writes the client's current tokens, or forgets them when signed out.
func persist(client *hosted.Client) error {
	base := normalizedBase(serverURL)
	if t, ok := client.Tokens(); ok {
		return saveTokens(base, t)
	}
	return forgetTokens(base)
}

func printf(cmd *cobra.Command, format string, a ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, a...)
}
