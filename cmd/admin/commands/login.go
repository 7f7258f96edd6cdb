package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/oksasatya/ngo-backoffice/internal/application/auth"
)

var (
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a username and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(loginUsername) == "" {
			return errors.New("--username is required")
		}
		password, err := readPassword(cmd, loginPassword)
		if err != nil {
			return err
		}

		client, store, cleanup, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if err := auth.NewService(client, client, logger).SignIn(cmd.Context(), loginUsername, password); err != nil {
			return err
		}
		if err := persist(client); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}
		printf(cmd, "signed in as %s\n", store.Principal().Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, cleanup, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if err := auth.NewService(client, client, logger).SignOut(cmd.Context()); err != nil {
			return err
		}
		if err := persist(client); err != nil {
			return err
		}
		printf(cmd, "signed out\n")
		return nil
	},
}

// readPassword prefers the flag, then ADMIN_PASSWORD, then a prompt.
func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		return v, nil
	}
	_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		return string(b), err
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "admin username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (or ADMIN_PASSWORD)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
