package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect smooths over the few SQL differences between the supported drivers.
type Dialect struct {
	Driver string
}

var (
	MySQL    = Dialect{Driver: "mysql"}
	Postgres = Dialect{Driver: "postgres"}
	SQLite   = Dialect{Driver: "sqlite"}
)

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "mysql":
		return MySQL, nil
	case "postgres":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

// Rebind rewrites `?` placeholders to `$n` for postgres.
func (d Dialect) Rebind(query string) string {
	if d.Driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InsertIgnore builds an INSERT that silently skips rows violating a unique key.
func (d Dialect) InsertIgnore(table string, columns ...string) string {
	cols := strings.Join(columns, ", ")
	marks := placeholders(len(columns))
	switch d.Driver {
	case "mysql":
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", table, cols, marks)
	case "sqlite":
		return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", table, cols, marks)
	default:
		return d.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING", table, cols, marks))
	}
}

// Upsert builds an INSERT that overwrites the update columns when the key already exists.
func (d Dialect) Upsert(table string, keys []string, updates []string) string {
	columns := append(append([]string{}, keys...), updates...)
	cols := strings.Join(columns, ", ")
	marks := placeholders(len(columns))

	sets := make([]string, 0, len(updates))
	if d.Driver == "mysql" {
		for _, c := range updates {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
			table, cols, marks, strings.Join(sets, ", "))
	}
	for _, c := range updates {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return d.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, cols, marks, strings.Join(keys, ", "), strings.Join(sets, ", ")))
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the database and pings it.
func Open(driver, dsn string, opts PoolOptions) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("failed to open DB: %w", err)
	}

	if driver == "sqlite" {
		// a single connection keeps in-memory databases shared and serialises writers
		db.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, Dialect{}, fmt.Errorf("failed to ping DB: %w", err)
	}
	return db, dialect, nil
}
