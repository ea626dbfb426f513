package reflection

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Reflection is a single free-text journal entry. Suggestions is a jsonb
// map of role name to {title, suggestion}; null until first generated.
// CanRegenerate is nullable on purpose: when unset the gate derives the
// answer from whether suggestions exist.
type Reflection struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UID       uint64     `gorm:"index;not null"`
	Title     string     `gorm:"type:text;not null;default:''"`
	Text      string     `gorm:"type:text;not null"`
	CreatedAt time.Time  `gorm:"index;not null;default:now()"`
	UpdatedAt *time.Time `gorm:"type:timestamptz"`

	RolesInvolved pq.StringArray  `gorm:"type:text[];not null;default:'{}'"`
	Suggestions   json.RawMessage `gorm:"type:jsonb"`
	CanRegenerate *bool

	IsPublic    bool `gorm:"index;not null;default:false"`
	IsAnonymous bool `gorm:"not null;default:true"`

	Likes     int             `gorm:"not null;default:0"`
	LikedBy   json.RawMessage `gorm:"type:jsonb;not null;default:'{}'::jsonb"`
	RateLimit json.RawMessage `gorm:"type:jsonb;not null;default:'{}'::jsonb"`
}

func (r *Reflection) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// LikeIndex records which reflections a signed-in user has liked, so the
// "my likes" view reads one index instead of scanning every reflection.
type LikeIndex struct {
	UID          uint64    `gorm:"primaryKey;autoIncrement:false"`
	ReflectionID uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt    time.Time `gorm:"not null;default:now()"`
}
