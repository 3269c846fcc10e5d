package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/relaycrm/calsync/internal/availability"
	calendarApp "github.com/relaycrm/calsync/internal/calendar/application"
	identityOAuth "github.com/relaycrm/calsync/internal/identity/application/oauth"
	"github.com/relaycrm/calsync/internal/outreach"
)

var templatePath string

var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Compute free time from the provider calendar",
	Long: `Lists busy intervals from the calendar and prints the free
one-hour ranges for the coming weekdays. With --template, splices the
lines into an outreach message at {{availability}}.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetContainer()
		if c == nil {
			return errors.New("application not configured")
		}
		userID := CurrentUserID()
		if userID == uuid.Nil {
			return errors.New("current user not configured")
		}
		ctx := cmd.Context()

		cred, err := c.Vault.Get(ctx, userID)
		if errors.Is(err, identityOAuth.ErrNotConnected) {
			return errors.New("calendar not connected, run: calsync auth connect")
		}
		if err != nil {
			return err
		}
		cred, err = c.Vault.EnsureFresh(ctx, cred)
		if errors.Is(err, identityOAuth.ErrAuthExpired) {
			return errors.New("calendar authorization expired, run: calsync auth connect")
		}
		if err != nil {
			return err
		}

		now := time.Now()
		window, err := calendarApp.NewWindow(now, now.AddDate(0, 0, c.Policy.MaxScanDays))
		if err != nil {
			return err
		}
		events, err := c.CalendarClient.ListEvents(ctx, cred, cred.CalendarID, window)
		if err != nil {
			return err
		}

		var busy []availability.BusyInterval
		for _, event := range events {
			if event.IsCancelled() {
				continue
			}
			busy = append(busy, availability.BusyInterval{Start: event.Start, End: event.End})
		}

		lines, err := availability.ComputeLines(busy, now, c.Policy)
		if err != nil {
			return err
		}

		if templatePath == "" {
			for _, line := range lines {
				fmt.Println(line)
			}
			return nil
		}

		template, err := os.ReadFile(templatePath)
		if err != nil {
			return fmt.Errorf("read template: %w", err)
		}
		message, err := outreach.Compose(string(template), lines)
		if err != nil {
			return err
		}
		fmt.Println(message)
		return nil
	},
}

func init() {
	availabilityCmd.Flags().StringVar(&templatePath, "template", "", "outreach template with a {{availability}} placeholder")
	AddCommand(availabilityCmd)
}
