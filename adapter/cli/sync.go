package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	calendarApp "github.com/relaycrm/calsync/internal/calendar/application"
	identityOAuth "github.com/relaycrm/calsync/internal/identity/application/oauth"
	syncApp "github.com/relaycrm/calsync/internal/sync/application"
)

var syncWindowDays int

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull calendar events into call records",
	Long: `Runs one sync pass over the coming window: events whose guests
match existing contacts become call records, unknown guests are queued
for confirmation (see "calsync pending").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetContainer()
		if c == nil {
			return errors.New("application not configured")
		}
		userID := CurrentUserID()
		if userID == uuid.Nil {
			return errors.New("current user not configured")
		}

		days := syncWindowDays
		if days <= 0 {
			days = c.Config.ListWindowDays
		}
		now := time.Now()
		window, err := calendarApp.NewWindow(now, now.AddDate(0, 0, days))
		if err != nil {
			return err
		}

		result, err := c.Engine.Run(cmd.Context(), userID, window)
		switch {
		case errors.Is(err, identityOAuth.ErrNotConnected):
			return errors.New("calendar not connected, run: calsync auth connect")
		case errors.Is(err, identityOAuth.ErrAuthExpired):
			return errors.New("calendar authorization expired, run: calsync auth connect")
		case errors.Is(err, syncApp.ErrSyncInProgress):
			return errors.New("another sync is already running for this user")
		case err != nil:
			return err
		}

		fmt.Printf("Synced %d, skipped %d, pending %d\n",
			result.Synced, result.Skipped, len(result.Pending))

		if len(result.Pending) > 0 {
			if err := savePending(c.Config, result.Pending); err != nil {
				return fmt.Errorf("save pending list: %w", err)
			}
			fmt.Println("Unmatched attendees were queued; review them with: calsync pending list")
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().IntVar(&syncWindowDays, "days", 0, "window length in days (default from config)")
	AddCommand(syncCmd)
}
