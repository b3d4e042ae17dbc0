package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/seatplan/internal/planners"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillPlannerLastSeen = "2026-09-14_backfill_planner_last_seen"
	migrationLowercasePlannerEmails  = "2026-10-02_lowercase_planner_emails"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillPlannerLastSeen, apply: backfillPlannerLastSeen},
		{name: migrationLowercasePlannerEmails, apply: lowercasePlannerEmails},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows created before last_seen_at was tracked carry a zero or null value.
func backfillPlannerLastSeen(db *gorm.DB) error {
	return db.Model(&planners.Identity{}).
		Where("last_seen_at IS NULL OR last_seen_at < ?", time.Unix(1, 0).UTC()).
		Update("last_seen_at", gorm.Expr("created_at")).Error
}

func lowercasePlannerEmails(db *gorm.DB) error {
	return db.Model(&planners.Identity{}).
		Where("planner_email <> LOWER(planner_email)").
		Update("planner_email", gorm.Expr("LOWER(planner_email)")).Error
}
