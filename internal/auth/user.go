package auth

import (
	"time"

	"github.com/lib/pq"
)

// User owns all period summaries and reflections. TimeZone is the IANA zone
// governing the user's week/month boundaries; empty until first resolved.
type User struct {
	ID           uint64         `gorm:"primaryKey"`
	Email        string         `gorm:"uniqueIndex;not null"`
	PasswordHash string         `gorm:"not null"`
	TimeZone     string         `gorm:"type:text;not null;default:''"`
	Roles        pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	CreatedAt    time.Time      `gorm:"not null;default:now()"`
}
