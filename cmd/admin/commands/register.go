package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oksasatya/ngo-backoffice/internal/application/auth"
	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
)

var (
	registerEmail    string
	registerUsername string
	registerPassword string
	registerRole     string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an admin identity and its account profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(registerEmail) == "" || strings.TrimSpace(registerUsername) == "" {
			return errors.New("--email and --username are required")
		}
		password, err := readPassword(cmd, registerPassword)
		if err != nil {
			return err
		}

		client, _, cleanup, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		created, err := auth.NewService(client, client, logger).Register(cmd.Context(), auth.RegisterInput{
			Email:    registerEmail,
			Username: registerUsername,
			Password: password,
			Role:     entity.RoleTag(registerRole),
		})
		if perr := persist(client); perr != nil && logger != nil {
			logger.WithError(perr).Warn("save credentials failed")
		}
		if err != nil {
			if errors.Is(err, auth.ErrProfileCreationFailed) {
				return fmt.Errorf("%w (the identity exists without a profile; see 'admin reconcile')", err)
			}
			return err
		}
		b, _ := json.MarshalIndent(created, "", "  ")
		printf(cmd, "%s\n", b)
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "email address")
	registerCmd.Flags().StringVar(&registerUsername, "username", "", "username")
	registerCmd.Flags().StringVarP(&registerPassword, "password", "p", "", "password (or ADMIN_PASSWORD)")
	registerCmd.Flags().StringVar(&registerRole, "role", string(entity.RoleTagRegular), "root or regular")
	rootCmd.AddCommand(registerCmd)
}
