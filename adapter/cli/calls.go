package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Inspect call records",
}

var callsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List call records",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetContainer()
		if c == nil {
			return errors.New("application not configured")
		}
		userID := CurrentUserID()
		if userID == uuid.Nil {
			return errors.New("current user not configured")
		}

		records, err := c.Records.FindByUser(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No call records.")
			return nil
		}

		for _, record := range records {
			mirror := "-"
			if record.IsMirrored() {
				mirror = record.Provider() + ":" + record.ExternalEventID()
			}
			fmt.Printf("%s  %s  %-10s %-40s %s\n",
				record.ID(),
				record.StartsAt().Format("2006-01-02 15:04"),
				record.Status(),
				record.Title(),
				mirror,
			)
		}
		return nil
	},
}

func init() {
	callsCmd.AddCommand(callsListCmd)
	AddCommand(callsCmd)
}
