package planners

import (
	"strings"
	"time"
)

// Identity links a provider-specific login to the plan its planner edits.
type Identity struct {
	Provider    string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null"`
	PlanID      string    `gorm:"column:plan_id;size:190;not null;index"`
	Email       string    `gorm:"column:planner_email;size:320"`
	DisplayName string    `gorm:"column:planner_display_name;size:320"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing planner identities.
func (Identity) TableName() string {
	return "planner_identities"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
