package csql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq" // load database driver for postgres
	"github.com/relabs-tech/modelgate/core/logger"
)

// DB encapsulates a standard sql.DB with a schema
type DB struct {
	*sql.DB
	Schema string
}

// ErrNoRows is returned by Scan when QueryRow doesn't return a
// row. In such a case, QueryRow returns a placeholder *Row value that
// defers this error until a Scan.
var ErrNoRows = sql.ErrNoRows

// OpenWithSchema opens a postgres database with a schema. The password is appended
// to the data source name if it is not empty, so that the connection string can be logged
// without it. The schema gets created if it does not exist yet.
func OpenWithSchema(dataSourceName, password, schema string) *DB {
	db, err := Open(context.Background(), dataSourceName, password, schema)
	if err != nil {
		panic(err)
	}
	return db
}

// Open is like OpenWithSchema but returns an error instead of panicking
func Open(ctx context.Context, dataSourceName, password, schema string) (*DB, error) {
	rlog := logger.FromContext(ctx)
	rlog.Infoln("connecting to postgres database:", dataSourceName)
	dsn := dataSourceName
	if len(password) > 0 {
		dsn += " password=" + password
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot reach database: %w", err)
	}
	if len(schema) == 0 {
		schema = "public"
	} else {
		rlog.Infoln("selected database schema:", schema)
		_, err = db.ExecContext(ctx, `CREATE schema IF NOT EXISTS `+QuoteIdentifier(schema)+`;`)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("cannot create schema %s: %w", schema, err)
		}
	}
	return &DB{DB: db, Schema: schema}, nil
}

// QuoteIdentifier quotes a postgres identifier such as a schema or table name.
// Embedded double quotes are doubled.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Table returns the schema qualified and quoted name of a table
func (db *DB) Table(name string) string {
	return QuoteIdentifier(db.Schema) + "." + QuoteIdentifier(name)
}

// ClearSchema clears all the data contained in the database's schema
// Technically this is done by dropping the schema and then recreating it
func (db *DB) ClearSchema() {
	if db.Schema == "public" {
		panic("refuse to drop public schema")
	}
	schema := QuoteIdentifier(db.Schema)
	_, err := db.Exec(`DROP SCHEMA IF EXISTS ` + schema + ` CASCADE;
	CREATE schema IF NOT EXISTS ` + schema + `;`)
	if err != nil {
		logger.Default().WithError(err).Errorln("clear schema error:", db.Schema)
	}
}
