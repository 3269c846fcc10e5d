package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	identityOAuth "github.com/relaycrm/calsync/internal/identity/application/oauth"
	syncApp "github.com/relaycrm/calsync/internal/sync/application"
)

var (
	pushAction string
	pushNotify bool
)

var pushCmd = &cobra.Command{
	Use:   "push <record-id>",
	Short: "Propagate a call record to the provider calendar",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetContainer()
		if c == nil {
			return errors.New("application not configured")
		}

		recordID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid record id %q", args[0])
		}

		action := syncApp.PushAction(pushAction)
		switch action {
		case syncApp.PushCreate, syncApp.PushUpdate, syncApp.PushDelete:
		default:
			return fmt.Errorf("action must be create, update, or delete")
		}

		record, err := c.Gateway.Apply(cmd.Context(), recordID, action, syncApp.PushOptions{Notify: pushNotify})
		switch {
		case errors.Is(err, syncApp.ErrRecordNotFound):
			return fmt.Errorf("no call record with id %s", recordID)
		case errors.Is(err, identityOAuth.ErrAuthExpired):
			return errors.New("calendar authorization expired, run: calsync auth connect")
		case err != nil:
			return err
		}

		if record.IsMirrored() {
			fmt.Printf("Record %s now mirrors provider event %s\n", record.ID(), record.ExternalEventID())
		} else {
			fmt.Printf("Record %s is no longer linked to a provider event\n", record.ID())
		}
		return nil
	},
}

func init() {
	pushCmd.Flags().StringVar(&pushAction, "action", "create", "create, update, or delete")
	pushCmd.Flags().BoolVar(&pushNotify, "notify", false, "email the contact about the change")
	AddCommand(pushCmd)
}
