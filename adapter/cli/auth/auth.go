// Package auth holds the calendar authorization commands.
package auth

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/relaycrm/calsync/adapter/cli"
	identityOAuth "github.com/relaycrm/calsync/internal/identity/application/oauth"
)

var vault *identityOAuth.Vault

// SetVault wires the token vault for the auth commands.
func SetVault(v *identityOAuth.Vault) {
	vault = v
}

var (
	authCode   string
	calendarID string
)

// Cmd is the auth command group.
var Cmd = &cobra.Command{
	Use:   "auth",
	Short: "Connect and disconnect the calendar provider",
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Authorize calendar access",
	Long: `Without --code, prints the provider consent URL to open in a
browser. With --code, exchanges the authorization code and stores the
encrypted credential.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if vault == nil {
			return errors.New("auth not configured")
		}
		userID := cli.CurrentUserID()
		if userID == uuid.Nil {
			return errors.New("current user not configured")
		}

		if authCode == "" {
			state := uuid.New().String()
			fmt.Println(vault.AuthURL(state))
			fmt.Printf("State: %s\n", state)
			fmt.Println("Re-run with --code <authorization code> to finish.")
			return nil
		}

		cred, err := vault.Exchange(cmd.Context(), userID, authCode, calendarID)
		if err != nil {
			return err
		}
		fmt.Printf("Connected calendar %q (token valid until %s)\n",
			cred.CalendarID, cred.Expiry.Format("2006-01-02 15:04 MST"))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the connection status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if vault == nil {
			return errors.New("auth not configured")
		}
		userID := cli.CurrentUserID()
		if userID == uuid.Nil {
			return errors.New("current user not configured")
		}

		cred, err := vault.Get(cmd.Context(), userID)
		if errors.Is(err, identityOAuth.ErrNotConnected) {
			fmt.Println("Not connected. Run: calsync auth connect")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Connected to %s, calendar %q, token expires %s\n",
			cred.Provider, cred.CalendarID, cred.Expiry.Format("2006-01-02 15:04 MST"))
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Remove the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		if vault == nil {
			return errors.New("auth not configured")
		}
		userID := cli.CurrentUserID()
		if userID == uuid.Nil {
			return errors.New("current user not configured")
		}

		if err := vault.Revoke(cmd.Context(), userID); err != nil {
			return err
		}
		fmt.Println("Disconnected.")
		return nil
	},
}

func init() {
	connectCmd.Flags().StringVar(&authCode, "code", "", "authorization code from the consent redirect")
	connectCmd.Flags().StringVar(&calendarID, "calendar", "", "target calendar id (default: primary)")
	Cmd.AddCommand(connectCmd, statusCmd, disconnectCmd)
}
