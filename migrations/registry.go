package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	integrations "github.com/goliatone/go-integrations"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const migrationsDir = "data/sql/migrations"

// Source is the credential store migration tree for one SQL dialect.
type Source struct {
	Dialect  string
	Path     string
	FS       fs.FS
	Versions []string
}

// RegisterFunc hands a resolved Source to the migration runner.
type RegisterFunc func(ctx context.Context, src Source) error

// DialectFor maps a credential_store sql_dialect value to the migration
// dialect. Blank selects postgres.
func DialectFor(sqlDialect string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(sqlDialect)) {
	case "", DialectPostgres, "pg", "postgresql":
		return DialectPostgres, nil
	case DialectSQLite, "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: unsupported sql dialect %q", sqlDialect)
	}
}

// Sources resolves the postgres and sqlite trees under root, or the embedded
// tree when root is nil. Every up file needs a down file, and both dialects
// must carry the same versions.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = integrations.GetMigrationsFS()
	}
	base, err := fs.Sub(root, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: %s not found: %w", migrationsDir, err)
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite tree: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: migrationsDir, FS: base},
		{Dialect: DialectSQLite, Path: migrationsDir + "/" + DialectSQLite, FS: sqliteFS},
	}
	for i := range sources {
		versions, err := pairedVersions(sources[i])
		if err != nil {
			return nil, err
		}
		sources[i].Versions = versions
	}
	if !slices.Equal(sources[0].Versions, sources[1].Versions) {
		return nil, fmt.Errorf("migrations: postgres versions %v do not match sqlite versions %v",
			sources[0].Versions, sources[1].Versions)
	}
	return sources, nil
}

// Register resolves the tree for dialect and passes it to register.
func Register(ctx context.Context, dialect string, register RegisterFunc, roots ...fs.FS) (Source, error) {
	if register == nil {
		return Source{}, fmt.Errorf("migrations: register function is required")
	}
	target, err := DialectFor(dialect)
	if err != nil {
		return Source{}, err
	}
	var root fs.FS
	if len(roots) > 0 {
		root = roots[0]
	}
	sources, err := Sources(root)
	if err != nil {
		return Source{}, err
	}
	for _, src := range sources {
		if src.Dialect != target {
			continue
		}
		if err := register(ctx, src); err != nil {
			return src, fmt.Errorf("migrations: register %s (%s): %w", src.Dialect, src.Path, err)
		}
		return src, nil
	}
	return Source{}, fmt.Errorf("migrations: no tree for dialect %s", target)
}

func pairedVersions(src Source) ([]string, error) {
	ups, err := fs.Glob(src.FS, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", src.Path, err)
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("migrations: %s tree %q has no *.up.sql files", src.Dialect, src.Path)
	}
	versions := make([]string, 0, len(ups))
	for _, up := range ups {
		name := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(src.FS, name+".down.sql"); err != nil {
			return nil, fmt.Errorf("migrations: %s/%s has no down migration", src.Path, up)
		}
		version, _, _ := strings.Cut(name, "_")
		versions = append(versions, version)
	}
	slices.Sort(versions)
	return versions, nil
}
