// Package app wires configuration, storage, and services into the
// dependency container used by the CLI and the worker.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	_ "modernc.org/sqlite"

	"github.com/relaycrm/calsync/internal/availability"
	calendarApp "github.com/relaycrm/calsync/internal/calendar/application"
	"github.com/relaycrm/calsync/internal/calendar/infrastructure/google"
	contactsPersistence "github.com/relaycrm/calsync/internal/contacts/infrastructure/persistence"
	"github.com/relaycrm/calsync/internal/identity/application/oauth"
	identityPersistence "github.com/relaycrm/calsync/internal/identity/infrastructure/persistence"
	sharedApp "github.com/relaycrm/calsync/internal/shared/application"
	"github.com/relaycrm/calsync/internal/shared/infrastructure/crypto"
	"github.com/relaycrm/calsync/internal/shared/infrastructure/lease"
	"github.com/relaycrm/calsync/internal/shared/infrastructure/migrations"
	"github.com/relaycrm/calsync/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/relaycrm/calsync/internal/shared/infrastructure/persistence"
	syncApp "github.com/relaycrm/calsync/internal/sync/application"
	"github.com/relaycrm/calsync/internal/sync/domain"
	syncPersistence "github.com/relaycrm/calsync/internal/sync/infrastructure/persistence"
	"github.com/relaycrm/calsync/pkg/config"
)

// Container holds the wired application services.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Vault           *oauth.Vault
	CalendarClient  calendarApp.Client
	Engine          *syncApp.Engine
	Gateway         *syncApp.PushGateway
	ResolutionQueue *syncApp.ResolutionQueue
	Records         domain.CallRecordRepository
	Contacts        syncApp.ContactDirectory
	OutboxRepo      outbox.Repository
	Policy          availability.Policy

	pool     *pgxpool.Pool
	sqliteDB *sql.DB
	redisC   *redis.Client
}

// New builds the container. With DATABASE_URL set it runs against
// Postgres, otherwise against a local SQLite file. Redis, when
// configured, provides cross-process leases; without it leases are
// process-local.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	tokenCipher, err := crypto.NewAESGCM(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("init token cipher: %w", err)
	}

	var (
		uow         sharedApp.UnitOfWork
		credRepo    oauth.Repository
		recordRepo  domain.CallRecordRepository
		contactsDir syncApp.ContactDirectory
		outboxRepo  outbox.Repository
	)

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		c.pool = pool
		uow = sharedPersistence.NewPostgresUnitOfWork(pool)
		credRepo = identityPersistence.NewPostgresCredentialRepository(pool)
		recordRepo = syncPersistence.NewPostgresCallRecordRepository(pool)
		contactsDir = contactsPersistence.NewPostgresDirectory(pool)
		outboxRepo = outbox.NewPostgresRepository(pool)
	} else {
		db, err := openSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		c.sqliteDB = db
		uow = sharedPersistence.NewSQLiteUnitOfWork(db)
		credRepo = identityPersistence.NewSQLiteCredentialRepository(db)
		recordRepo = syncPersistence.NewSQLiteCallRecordRepository(db)
		contactsDir = contactsPersistence.NewSQLiteDirectory(db)
		outboxRepo = outbox.NewSQLiteRepository(db)
	}

	var locker lease.Locker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		c.redisC = redis.NewClient(opts)
		locker = lease.NewRedisLocker(c.redisC)
	} else {
		locker = lease.NewMemoryLocker()
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		RedirectURL:  cfg.OAuthRedirectURL,
		Scopes:       strings.Fields(cfg.OAuthScopes),
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.OAuthAuthURL,
			TokenURL: cfg.OAuthTokenURL,
		},
	}

	c.Vault = oauth.NewVault(oauthCfg, credRepo, tokenCipher, locker, logger)
	c.CalendarClient = google.NewClient(logger)
	c.Records = recordRepo
	c.Contacts = contactsDir
	c.OutboxRepo = outboxRepo
	c.Engine = syncApp.NewEngine(
		c.Vault, c.CalendarClient, recordRepo, contactsDir,
		outboxRepo, uow, locker, cfg.SyncLeaseTTL, logger,
	)
	c.Gateway = syncApp.NewPushGateway(
		c.Vault, c.CalendarClient, recordRepo, contactsDir,
		outboxRepo, uow, logger,
	)
	c.ResolutionQueue = syncApp.NewResolutionQueue(
		contactsDir, recordRepo, outboxRepo, uow, logger,
	)
	c.Policy = availability.Policy{
		StartHour:      cfg.WorkStartHour,
		EndHour:        cfg.WorkEndHour,
		UTCOffsetHours: int(cfg.WorkUTCOffset.Hours()),
		ZoneLabel:      cfg.WorkZoneLabel,
		TargetWeekdays: cfg.TargetWeekdays,
		MaxScanDays:    cfg.MaxScanDays,
	}

	return c, nil
}

// Close releases the container's connections.
func (c *Container) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
	if c.sqliteDB != nil {
		_ = c.sqliteDB.Close()
	}
	if c.redisC != nil {
		_ = c.redisC.Close()
	}
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}
