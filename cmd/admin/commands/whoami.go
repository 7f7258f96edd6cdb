package commands

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in principal and account profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, store, cleanup, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		defer func() { _ = persist(client) }()

		p := store.Principal()
		if p == nil {
			return errors.New("not logged in; run 'admin login' first")
		}
		out := map[string]any{"principal": p}
		if prof, err := client.Me(cmd.Context()); err == nil {
			out["profile"] = prof
		} else if logger != nil {
			logger.WithError(err).Debug("profile lookup failed")
		}
		b, _ := json.MarshalIndent(out, "", "  ")
		printf(cmd, "%s\n", b)
		return nil
	},
}

func init() { rootCmd.AddCommand(whoamiCmd) }
