package plan

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errMissingStoreDatabase = errors.New("plan store: database handle is required")

// Store persists plan snapshots. Load reports false when the plan was never saved.
type Store interface {
	Load(ctx context.Context, planID string) (Snapshot, bool, error)
	Save(ctx context.Context, snapshot Snapshot) error
}

// SnapshotRecord is the persisted row backing one plan.
type SnapshotRecord struct {
	PlanID           string `gorm:"column:plan_id;primaryKey;size:190;not null"`
	Version          int64  `gorm:"column:version;not null;default:0"`
	PayloadJSON      string `gorm:"column:payload_json;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (SnapshotRecord) TableName() string {
	return "plan_snapshots"
}

// GormStore keeps one snapshot row per plan.
type GormStore struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewGormStore constructs a Store backed by db.
func NewGormStore(db *gorm.DB, clock func() time.Time) (*GormStore, error) {
	if db == nil {
		return nil, errMissingStoreDatabase
	}
	if clock == nil {
		clock = time.Now
	}
	return &GormStore{db: db, clock: clock}, nil
}

// Load reads and decodes the snapshot of planID.
func (s *GormStore) Load(ctx context.Context, planID string) (Snapshot, bool, error) {
	var record SnapshotRecord
	err := s.db.WithContext(ctx).Where("plan_id = ?", planID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	snapshot, err := DecodeSnapshot([]byte(record.PayloadJSON))
	if err != nil {
		return Snapshot{}, false, err
	}
	snapshot.PlanID = record.PlanID
	snapshot.Version = record.Version
	return snapshot, true, nil
}

// Save upserts the snapshot. Rows never move backwards to an older version.
func (s *GormStore) Save(ctx context.Context, snapshot Snapshot) error {
	payload, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	record := SnapshotRecord{
		PlanID:           snapshot.PlanID,
		Version:          snapshot.Version,
		PayloadJSON:      string(payload),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "plan_id"}},
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "plan_snapshots.version < excluded.version"},
		}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "payload_json", "updated_at_s"}),
	}).Create(&record).Error
}
