package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oksasatya/ngo-backoffice/internal/application/identity"
	pginfra "github.com/oksasatya/ngo-backoffice/internal/infrastructure/postgres"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
)

var reconcileDelete bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "List identities that have no account profile",
	Long: `Registration creates the identity before the account profile. When the
profile insert fails the identity is left behind. reconcile lists those
identities straight from Postgres and, with --delete, removes them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := pginfra.NewPool(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer func() { _ = rdb.Close() }()

		svc := identity.NewService(pginfra.NewIdentityRepository(pool), nil, nil, rdb, nil, logger, cfg.SessionTTL)
		orphans, err := svc.Orphans(ctx)
		if err != nil {
			return err
		}
		if len(orphans) == 0 {
			printf(cmd, "no orphaned identities\n")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tEMAIL\tCREATED")
		for _, o := range orphans {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", o.ID, o.Email, o.CreatedAt.Format("2006-01-02 15:04"))
		}
		_ = tw.Flush()

		if !reconcileDelete {
			return nil
		}
		var failed int
		for _, o := range orphans {
			if err := svc.DeleteIdentity(ctx, o.ID); err != nil {
				failed++
				printf(cmd, "delete %s: %v\n", o.Email, err)
			}
		}
		printf(cmd, "deleted %d of %d\n", len(orphans)-failed, len(orphans))
		if failed > 0 {
			return fmt.Errorf("%d deletions failed", failed)
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileDelete, "delete", false, "delete the listed identities")
	rootCmd.AddCommand(reconcileCmd)
}
