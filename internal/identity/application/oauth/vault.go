// Package oauth manages provider OAuth credentials: exchange, encrypted
// storage, and refresh ahead of expiry.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/relaycrm/calsync/internal/shared/infrastructure/crypto"
	"github.com/relaycrm/calsync/internal/shared/infrastructure/lease"
)

// refreshSkew is how long before expiry a token is considered stale.
const refreshSkew = 60 * time.Second

// refreshLeaseTTL bounds how long a refresh may hold the per-user lease.
const refreshLeaseTTL = 30 * time.Second

// refreshPollInterval paces re-reads while another process holds the
// refresh lease.
const refreshPollInterval = 200 * time.Millisecond

// Vault stores, retrieves, and refreshes provider credentials. Tokens are
// sealed before they reach the repository and opened on the way out.
type Vault struct {
	oauthCfg *oauth2.Config
	repo     Repository
	cipher   crypto.TokenCipher
	locker   lease.Locker
	logger   *slog.Logger
	now      func() time.Time

	pollInterval time.Duration
	waitBudget   time.Duration
}

// NewVault creates a Vault.
func NewVault(
	oauthCfg *oauth2.Config,
	repo Repository,
	cipher crypto.TokenCipher,
	locker lease.Locker,
	logger *slog.Logger,
) *Vault {
	return &Vault{
		oauthCfg: oauthCfg,
		repo:     repo,
		cipher:   cipher,
		locker:   locker,
		logger:   logger,
		now:      time.Now,

		pollInterval: refreshPollInterval,
		waitBudget:   refreshLeaseTTL,
	}
}

// AuthURL returns the provider consent URL for the given CSRF state.
func (v *Vault) AuthURL(state string) string {
	return v.oauthCfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for tokens and stores them.
func (v *Vault) Exchange(ctx context.Context, userID uuid.UUID, code, calendarID string) (*Credential, error) {
	token, err := v.oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return v.Store(ctx, userID, token, calendarID)
}

// Store seals and persists the token for the user, replacing any
// previous credential for the provider.
func (v *Vault) Store(ctx context.Context, userID uuid.UUID, token *oauth2.Token, calendarID string) (*Credential, error) {
	if token.AccessToken == "" {
		return nil, fmt.Errorf("store credential: empty access token")
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	sealedAccess, err := v.cipher.Seal([]byte(token.AccessToken))
	if err != nil {
		return nil, fmt.Errorf("seal access token: %w", err)
	}

	stored := &StoredCredential{
		UserID:      userID,
		Provider:    ProviderGoogle,
		AccessToken: sealedAccess,
		TokenType:   token.TokenType,
		Expiry:      token.Expiry,
		CalendarID:  calendarID,
		UpdatedAt:   v.now().UTC(),
	}
	if token.RefreshToken != "" {
		sealedRefresh, err := v.cipher.Seal([]byte(token.RefreshToken))
		if err != nil {
			return nil, fmt.Errorf("seal refresh token: %w", err)
		}
		stored.RefreshToken = sealedRefresh
	}

	if err := v.repo.Save(ctx, stored); err != nil {
		return nil, fmt.Errorf("save credential: %w", err)
	}

	v.logger.InfoContext(ctx, "credential stored",
		slog.String("user_id", userID.String()),
		slog.String("provider", ProviderGoogle),
		slog.String("calendar_id", calendarID),
	)
	return v.open(stored)
}

// Get returns the user's decrypted credential, or ErrNotConnected when
// none is stored.
func (v *Vault) Get(ctx context.Context, userID uuid.UUID) (*Credential, error) {
	stored, err := v.repo.FindByUser(ctx, userID, ProviderGoogle)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if stored == nil {
		return nil, ErrNotConnected
	}
	return v.open(stored)
}

// EnsureFresh returns a credential whose access token is valid for at
// least the refresh skew, refreshing and persisting it first when it is
// not. The refresh is serialized per user: the lease winner refreshes,
// losers wait for the winner's result. Refresh failure returns
// ErrAuthExpired; callers must not retry but surface re-authorization
// to the user.
func (v *Vault) EnsureFresh(ctx context.Context, cred *Credential) (*Credential, error) {
	if v.fresh(cred.Expiry) {
		return cred, nil
	}
	if cred.RefreshToken == "" {
		return nil, ErrAuthExpired
	}

	release, err := v.locker.Acquire(ctx, "token:"+cred.UserID.String(), refreshLeaseTTL)
	if errors.Is(err, lease.ErrHeld) {
		return v.awaitRefresh(ctx, cred.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire refresh lease: %w", err)
	}
	defer release(ctx)

	// A concurrent refresh may have finished between the staleness
	// check and the lease grant.
	current, err := v.Get(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}
	if v.fresh(current.Expiry) {
		return current, nil
	}

	src := v.oauthCfg.TokenSource(ctx, &oauth2.Token{
		RefreshToken: current.RefreshToken,
		TokenType:    current.TokenType,
	})
	token, err := src.Token()
	if err != nil {
		v.logger.WarnContext(ctx, "token refresh failed",
			slog.String("user_id", cred.UserID.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	if token.RefreshToken == "" {
		token.RefreshToken = current.RefreshToken
	}

	refreshed, err := v.Store(ctx, cred.UserID, token, current.CalendarID)
	if err != nil {
		return nil, err
	}

	v.logger.InfoContext(ctx, "access token refreshed",
		slog.String("user_id", cred.UserID.String()),
		slog.Time("expiry", refreshed.Expiry),
	)
	return refreshed, nil
}

// Revoke deletes the stored credential for the user.
func (v *Vault) Revoke(ctx context.Context, userID uuid.UUID) error {
	if err := v.repo.Delete(ctx, userID, ProviderGoogle); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	v.logger.InfoContext(ctx, "credential revoked",
		slog.String("user_id", userID.String()),
		slog.String("provider", ProviderGoogle),
	)
	return nil
}

// awaitRefresh re-reads the stored credential while another process
// holds the refresh lease and returns it once fresh. Gives up with
// ErrAuthExpired when the wait budget runs out.
func (v *Vault) awaitRefresh(ctx context.Context, userID uuid.UUID) (*Credential, error) {
	deadline := v.now().Add(v.waitBudget)
	for {
		current, err := v.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if v.fresh(current.Expiry) {
			return current, nil
		}
		if !v.now().Before(deadline) {
			return nil, fmt.Errorf("%w: concurrent refresh did not complete", ErrAuthExpired)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(v.pollInterval):
		}
	}
}

func (v *Vault) fresh(expiry time.Time) bool {
	return v.now().Before(expiry.Add(-refreshSkew))
}

func (v *Vault) open(stored *StoredCredential) (*Credential, error) {
	access, err := v.cipher.Open(stored.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("open access token: %w", err)
	}
	cred := &Credential{
		UserID:      stored.UserID,
		Provider:    stored.Provider,
		AccessToken: string(access),
		TokenType:   stored.TokenType,
		Expiry:      stored.Expiry,
		CalendarID:  stored.CalendarID,
	}
	if len(stored.RefreshToken) > 0 {
		refresh, err := v.cipher.Open(stored.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("open refresh token: %w", err)
		}
		cred.RefreshToken = string(refresh)
	}
	return cred, nil
}
