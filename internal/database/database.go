package database

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/seatplan/internal/plan"
	"github.com/MarcoPoloResearchLab/seatplan/internal/planners"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects the database backend.
type Options struct {
	Driver string
	Path   string
	DSN    string
}

// Open establishes a connection for the configured driver and performs schema migrations.
func Open(options Options, logger *zap.Logger) (*gorm.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(options.Driver))
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = openSQLite(options.Path)
	case DriverPostgres:
		db, err = openPostgres(options.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", options.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&plan.SnapshotRecord{}, &planners.Identity{}, &migrationRecord{}); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", driver))
	}

	return db, nil
}

func openSQLite(path string) (*gorm.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func openPostgres(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required for postgres")
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}
