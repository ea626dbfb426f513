package summary

import (
	"time"

	"github.com/lib/pq"
)

// WeeklySummary is written exactly once per (uid, weekId) and never mutated.
// A second generation attempt short-circuits to the stored record.
type WeeklySummary struct {
	ID        uint64    `gorm:"primaryKey"`
	UID       uint64    `gorm:"uniqueIndex:uq_weekly_uid_week;not null"`
	WeekID    string    `gorm:"uniqueIndex:uq_weekly_uid_week;type:text;not null"`
	WeekStart time.Time `gorm:"not null"`

	Summary    string         `gorm:"type:text;not null;default:''"`
	Wins       pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	Challenges pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	NextWeek   pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

// MonthlySummary records which covering weeks fed the analysis and which had
// no weekly summary at generation time. Same once-only invariant.
type MonthlySummary struct {
	ID    uint64 `gorm:"primaryKey"`
	UID   uint64 `gorm:"uniqueIndex:uq_monthly_uid_month;not null"`
	Month string `gorm:"uniqueIndex:uq_monthly_uid_month;type:text;not null"`

	WeeksIncluded pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	WeeksMissing  pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	Summary           string         `gorm:"type:text;not null;default:''"`
	Patterns          string         `gorm:"type:text;not null;default:''"`
	EmotionalTrend    string         `gorm:"type:text;not null;default:''"`
	RoleTrend         string         `gorm:"type:text;not null;default:''"`
	ProductivityTrend string         `gorm:"type:text;not null;default:''"`
	ActionSteps       pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}
