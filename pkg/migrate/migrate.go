package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is relative to the repository root, where binaries are run from.
const DefaultDir = "pkg/migrate/migrations"

type runner struct {
	db  *sql.DB
	dir string
}

func newRunner(db *sql.DB, dir string) (*runner, error) {
	switch {
	case db == nil:
		return nil, errors.New("migrate: db is required")
	case dir == "":
		return nil, errors.New("migrate: dir is required")
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &runner{db: db, dir: dir}, nil
}

func (r *runner) exec(ctx context.Context, command string, args ...string) error {
	if err := goose.RunContext(ctx, command, r.db, r.dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func (r *runner) moveTo(ctx context.Context, target int64) error {
	current, err := goose.GetDBVersionContext(ctx, r.db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	if current == target {
		return nil
	}

	if current < target {
		err = goose.UpToContext(ctx, r.db, r.dir, target)
	} else {
		err = goose.DownToContext(ctx, r.db, r.dir, target)
	}
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
	}
	return nil
}

// Run executes a goose command (up, down, status, ...) against db.
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	r, err := newRunner(db, dir)
	if err != nil {
		return err
	}
	return r.exec(ctx, command, args...)
}

// MigrateToVersion moves the schema up or down to targetVersion, a
// YYYYMMDDHHMMSS migration prefix.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string) error {
	target, err := parseVersion(targetVersion)
	if err != nil {
		return err
	}
	r, err := newRunner(db, dir)
	if err != nil {
		return err
	}
	return r.moveTo(ctx, target)
}

func parseVersion(v string) (int64, error) {
	if v == "" {
		return 0, errors.New("migrate: target version is required")
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || !sqlVersionRe.MatchString(v) {
		return 0, fmt.Errorf("migrate: invalid version %q, expected YYYYMMDDHHMMSS", v)
	}
	return n, nil
}
