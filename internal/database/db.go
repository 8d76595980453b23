package database

import (
	"fmt"
	"strings"

	"auditor-service/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection opens the backing store and migrates the document, item and
// audit tables. Postgres is the production driver; DSNs that look like a
// sqlite target (":memory:" or a *.db path) open the embedded pure-Go driver,
// which is what the CLI and the test suite use.
func NewConnection(dsn string) (*gorm.DB, error) {
	if err := model.VerifySchema(); err != nil {
		return nil, fmt.Errorf("schema declaration invalid: %w", err)
	}

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var db *gorm.DB
	var err error
	if isSQLiteDSN(dsn) {
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	} else {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	}
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&model.Document{},
		&model.DocumentItem{},
		&model.AuditResult{},
	)
	if err != nil {
		return nil, fmt.Errorf("auto-migrate failed: %w", err)
	}

	return db, nil
}

func isSQLiteDSN(dsn string) bool {
	return dsn == ":memory:" ||
		strings.HasPrefix(dsn, "file:") ||
		strings.HasSuffix(dsn, ".db") ||
		strings.HasSuffix(dsn, ".sqlite")
}
