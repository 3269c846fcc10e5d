package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/relaycrm/calsync/internal/sync/domain"
	"github.com/relaycrm/calsync/pkg/config"
)

var resolveAll bool

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Review and resolve unmatched attendees",
}

var pendingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendees waiting for confirmation",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetContainer()
		if c == nil {
			return errors.New("application not configured")
		}
		entries, err := loadPending(c.Config)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No pending attendees.")
			return nil
		}
		for _, e := range entries {
			name := e.DisplayName
			if name == "" {
				name = "(no name)"
			}
			fmt.Printf("%-32s %-24s %s %s\n",
				e.Email, name, e.StartsAt.Format("2006-01-02 15:04"), e.Title)
		}
		return nil
	},
}

var pendingResolveCmd = &cobra.Command{
	Use:   "resolve [email ...]",
	Short: "Create contacts and call records for confirmed attendees",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetContainer()
		if c == nil {
			return errors.New("application not configured")
		}
		userID := CurrentUserID()
		if userID == uuid.Nil {
			return errors.New("current user not configured")
		}
		if !resolveAll && len(args) == 0 {
			return errors.New("pass attendee emails or --all")
		}

		entries, err := loadPending(c.Config)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No pending attendees.")
			return nil
		}

		approved, remaining := splitApproved(entries, args, resolveAll)
		if len(approved) == 0 {
			return errors.New("no pending attendee matches the given emails")
		}

		created, err := c.ResolutionQueue.Confirm(cmd.Context(), userID, approved)
		if err != nil {
			return err
		}

		// Approved entries leave the queue either way: a failed one shows
		// up again on the next sync pass since its event stays unmirrored.
		if err := savePending(c.Config, remaining); err != nil {
			return fmt.Errorf("rewrite pending list: %w", err)
		}

		fmt.Printf("Created %d of %d contacts with call records\n", created, len(approved))
		if created < len(approved) {
			fmt.Println("Some entries failed; the next sync pass will queue them again.")
		}
		return nil
	},
}

func splitApproved(entries []domain.PendingAttendee, emails []string, all bool) (approved, remaining []domain.PendingAttendee) {
	if all {
		return entries, nil
	}
	wanted := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		wanted[domain.NormalizeEmail(e)] = struct{}{}
	}
	for _, entry := range entries {
		if _, ok := wanted[domain.NormalizeEmail(entry.Email)]; ok {
			approved = append(approved, entry)
		} else {
			remaining = append(remaining, entry)
		}
	}
	return approved, remaining
}

func pendingPath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.SQLitePath), "pending.json")
}

func loadPending(cfg *config.Config) ([]domain.PendingAttendee, error) {
	raw, err := os.ReadFile(pendingPath(cfg))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pending list: %w", err)
	}
	var entries []domain.PendingAttendee
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode pending list: %w", err)
	}
	return entries, nil
}

func savePending(cfg *config.Config, entries []domain.PendingAttendee) error {
	path := pendingPath(cfg)
	if len(entries) == 0 {
		err := os.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func init() {
	pendingResolveCmd.Flags().BoolVar(&resolveAll, "all", false, "resolve every pending attendee")
	pendingCmd.AddCommand(pendingListCmd, pendingResolveCmd)
	AddCommand(pendingCmd)
}
