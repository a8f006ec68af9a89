package models

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"clinic-records/monitoring"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	moderncsqlite "modernc.org/sqlite"
)

const sqlitePrefix = "sqlite:"

// unicodeLower is a sqlite function lowering text with Unicode case rules.
const unicodeLower = "unicode_lower"

func init() {
	if err := moderncsqlite.RegisterDeterministicScalarFunction(unicodeLower, 1, lowerText); err != nil {
		panic(fmt.Sprintf("register %s: %v", unicodeLower, err))
	}
}

func lowerText(_ *moderncsqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// Open connects to the database named by url and migrates the schema.
// A url of the form "sqlite:<path>" opens a local sqlite file (":memory:"
// for a throwaway database); anything else is passed to the postgres
// driver as a DSN or connection URL.
func Open(url string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	var dialector gorm.Dialector
	var sqlDB *sql.DB
	if path, ok := strings.CutPrefix(url, sqlitePrefix); ok {
		var err error
		sqlDB, err = sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// One connection keeps an in-memory database alive and serialises writers.
		sqlDB.SetMaxOpenConns(1)
		dialector = &sqlite.Dialector{Conn: sqlDB}
	} else {
		dialector = postgres.Open(url)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		if sqlDB != nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if sqlDB == nil {
		if pool, err := db.DB(); err == nil {
			pool.SetMaxOpenConns(20)
			pool.SetMaxIdleConns(5)
			pool.SetConnMaxLifetime(30 * time.Minute)
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	if err := RegisterMetrics(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Record{}, &Transaction{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// RegisterMetrics counts every statement gorm executes.
func RegisterMetrics(db *gorm.DB) error {
	count := func(*gorm.DB) { monitoring.DatabaseQueries.Inc() }

	cb := db.Callback()
	if err := cb.Query().After("gorm:query").Register("metrics:query", count); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("metrics:create", count); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("metrics:update", count); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("metrics:delete", count); err != nil {
		return err
	}
	return cb.Row().After("gorm:row").Register("metrics:row", count)
}
