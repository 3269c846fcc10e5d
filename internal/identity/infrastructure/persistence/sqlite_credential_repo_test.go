package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/relaycrm/calsync/internal/identity/application/oauth"
	"github.com/relaycrm/calsync/internal/shared/infrastructure/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.RunSQLiteMigrations(context.Background(), db))
	return db
}

func TestSQLiteCredentialRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteCredentialRepository(setupTestDB(t))
	userID := uuid.New()

	cred := &oauth.StoredCredential{
		UserID:       userID,
		Provider:     oauth.ProviderGoogle,
		AccessToken:  []byte("enc-access"),
		RefreshToken: []byte("enc-refresh"),
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		CalendarID:   "primary",
	}

	t.Run("find returns nil when nothing is stored", func(t *testing.T) {
		got, err := repo.FindByUser(ctx, userID, oauth.ProviderGoogle)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("save and find round-trip", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, cred))

		got, err := repo.FindByUser(ctx, userID, oauth.ProviderGoogle)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, cred.UserID, got.UserID)
		assert.Equal(t, cred.AccessToken, got.AccessToken)
		assert.Equal(t, cred.RefreshToken, got.RefreshToken)
		assert.True(t, cred.Expiry.Equal(got.Expiry))
		assert.Equal(t, "primary", got.CalendarID)
	})

	t.Run("save upserts and keeps the refresh token when omitted", func(t *testing.T) {
		updated := *cred
		updated.AccessToken = []byte("enc-access-2")
		updated.RefreshToken = nil
		require.NoError(t, repo.Save(ctx, &updated))

		got, err := repo.FindByUser(ctx, userID, oauth.ProviderGoogle)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, []byte("enc-access-2"), got.AccessToken)
		assert.Equal(t, []byte("enc-refresh"), got.RefreshToken)
	})

	t.Run("delete removes the credential", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, userID, oauth.ProviderGoogle))

		got, err := repo.FindByUser(ctx, userID, oauth.ProviderGoogle)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
