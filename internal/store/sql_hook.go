package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/qustavo/sqlhooks/v2"
	"modernc.org/sqlite"
)

// SlowQueryThreshold is the duration above which a query is reported.
var SlowQueryThreshold = 500 * time.Millisecond

type beginKey struct{}

// Hooks reports slow queries on stderr.
type Hooks struct{}

func (h *Hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	return context.WithValue(ctx, beginKey{}, time.Now()), nil
}

func (h *Hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	begin, ok := ctx.Value(beginKey{}).(time.Time)
	if !ok {
		return ctx, nil
	}
	if d := time.Since(begin); d > SlowQueryThreshold {
		color.Red("%v slow sql: %s %q took: %s\n", time.Now().Format(time.RFC3339), query, args, d)
	}
	return ctx, nil
}

const sqliteHooked = "sqliteWithHooks"

var registerOnce sync.Once

func openSQLite(path string) (*sql.DB, error) {
	registerOnce.Do(func() {
		sql.Register(sqliteHooked, sqlhooks.Wrap(&sqlite.Driver{}, &Hooks{}))
	})
	db, err := sql.Open(sqliteHooked, path)
	if err != nil {
		return nil, err
	}
	// One writer keeps the file free of SQLITE_BUSY during sync.
	db.SetMaxOpenConns(1)
	return db, nil
}
