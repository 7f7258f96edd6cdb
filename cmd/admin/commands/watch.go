package commands

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print session transitions until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, store, cleanup, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		report := func(p *entity.Principal) {
			ts := time.Now().Format(time.RFC3339)
			if p == nil {
				printf(cmd, "%s signed out\n", ts)
				return
			}
			printf(cmd, "%s signed in as %s\n", ts, p.Email)
		}
		report(store.Principal())
		unwatch := store.Watch(func(p *entity.Principal) {
			report(p)
			_ = persist(client)
		})
		defer unwatch()

		<-ctx.Done()
		return nil
	},
}

func init() { rootCmd.AddCommand(watchCmd) }
