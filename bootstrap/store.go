package bootstrap

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	integrationmigrations "github.com/goliatone/go-integrations/migrations"
	graphqlstore "github.com/goliatone/go-integrations/store/graphql"
	sqlstore "github.com/goliatone/go-integrations/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type persistenceConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.dsn
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "go-integrations"
}

func openGraphQLStore(cfg core.CredentialStoreConfig, client *http.Client) (core.CredentialStore, error) {
	if client == nil {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return graphqlstore.NewCredentialStore(cfg, client)
}

// openSQLStore connects, applies the embedded migrations for the dialect and
// returns the credential store, cached when a TTL is configured.
func openSQLStore(ctx context.Context, cfg core.CredentialStoreConfig, debug bool, logger core.Logger) (core.CredentialStore, func() error, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, nil, core.NewConfigInvalidError("bootstrap: credential_store dsn is required for the sql driver", nil)
	}

	var (
		driverName string
		dialect    schema.Dialect
	)
	target, err := integrationmigrations.DialectFor(cfg.SQLDialect)
	if err != nil {
		return nil, nil, core.NewConfigInvalidError("bootstrap: credential_store sql_dialect", err)
	}
	switch target {
	case integrationmigrations.DialectSQLite:
		driverName, dialect = "sqlite3", sqlitedialect.New()
	default:
		driverName, dialect = "postgres", pgdialect.New()
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, nil, core.NewConfigInvalidError("bootstrap: open credential store", err)
	}
	if target == integrationmigrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{driver: driverName, dsn: dsn, debug: debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, core.NewPersistenceError("connect", err)
	}
	closeFn := func() error { return client.Close() }

	_, err = integrationmigrations.Register(ctx, target, func(_ context.Context, src integrationmigrations.Source) error {
		client.RegisterSQLMigrations(src.FS)
		return nil
	})
	if err != nil {
		_ = closeFn()
		return nil, nil, core.NewPersistenceError("migrate", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = closeFn()
		return nil, nil, core.NewPersistenceError("migrate", err)
	}

	var opts []sqlstore.FactoryOption
	if cfg.CacheTTLSeconds > 0 {
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
		cacheService, cacheErr := repositorycache.NewCacheService(cacheConfig)
		if cacheErr != nil {
			_ = closeFn()
			return nil, nil, cacheErr
		}
		opts = append(opts,
			sqlstore.WithCredentialCache(cacheService),
			sqlstore.WithCredentialCacheLogger(logger),
		)
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, opts...)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return factory.CredentialStore(), closeFn, nil
}
