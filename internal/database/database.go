package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/digkill/LandingForge/internal/config"
)

// Dialect captures the few places where Postgres and MySQL SQL differ.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// Rebind rewrites `?` placeholders into the dialect's positional form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// InsertIgnore returns an INSERT statement that silently skips rows violating a unique key.
func (d Dialect) InsertIgnore(table, columns string, conflict string, args int) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", args), ", ")
	if d == MySQL {
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", table, columns, placeholders)
	}
	return d.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING", table, columns, placeholders, conflict))
}

// Connect opens the configured SQL database with sensible pooling defaults.
func Connect(cfg config.Config) (*sql.DB, Dialect, error) {
	var (
		db      *sql.DB
		dialect Dialect
		err     error
	)
	switch cfg.DatabaseDriver {
	case "mysql":
		dsn, dsnErr := mysqlDSN(cfg.DatabaseDSN)
		if dsnErr != nil {
			return nil, "", dsnErr
		}
		db, err = sql.Open("mysql", dsn)
		dialect = MySQL
	default:
		db, err = sql.Open("pgx", cfg.DatabaseDSN)
		dialect = Postgres
	}
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", dialect, err)
	}

	db.SetConnMaxLifetime(time.Minute * 5)
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("ping %s: %w", dialect, err)
	}

	return db, dialect, nil
}

// mysqlDSN forces parseTime so nullable timestamps scan into sql.NullTime, and pins
// the session time zone to UTC so CURRENT_TIMESTAMP matches the UTC times the
// driver writes.
func mysqlDSN(raw string) (string, error) {
	mc, err := mysql.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	mc.ParseTime = true
	if mc.Loc == nil {
		mc.Loc = time.UTC
	}
	if mc.Params == nil {
		mc.Params = map[string]string{}
	}
	if _, ok := mc.Params["time_zone"]; !ok {
		mc.Params["time_zone"] = "'+00:00'"
	}
	return mc.FormatDSN(), nil
}

// Migrate runs the bootstrap schema to ensure required tables exist.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	statements := postgresSchema
	if dialect == MySQL {
		statements = mysqlSchema
	}
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
