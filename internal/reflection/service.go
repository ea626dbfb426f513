package reflection

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"revo/internal/ai"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound           = errors.New("reflection not found")
	ErrForbidden          = errors.New("not the owner")
	ErrEmptyText          = errors.New("text required")
	ErrRegenerateBlocked  = errors.New("suggestions already generated; edit the reflection first")
	ErrLikeRateLimited    = errors.New("like rate limited")
	ErrNoRoles            = errors.New("at least one role required")
	likeRateLimitInterval = 60 * time.Second
)

type Service struct {
	DB *gorm.DB
	AI ai.Summarizer
}

type CreateInput struct {
	Text  string
	Title string
}

func (s *Service) Create(ctx context.Context, userID uint64, in CreateInput) (uuid.UUID, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return uuid.Nil, ErrEmptyText
	}

	r := Reflection{
		UID:   userID,
		Text:  text,
		Title: DeriveTitle(text, in.Title),
	}
	if err := s.DB.WithContext(ctx).Create(&r).Error; err != nil {
		return uuid.Nil, err
	}
	return r.ID, nil
}

func (s *Service) Get(ctx context.Context, userID uint64, id uuid.UUID) (Reflection, error) {
	var r Reflection
	if err := s.DB.WithContext(ctx).Where("id=?", id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Reflection{}, ErrNotFound
		}
		return Reflection{}, err
	}
	if r.UID != userID {
		return Reflection{}, ErrForbidden
	}
	return r, nil
}

func (s *Service) List(ctx context.Context, userID uint64) ([]Reflection, error) {
	var rows []Reflection
	err := s.DB.WithContext(ctx).
		Where("uid=?", userID).
		Order("created_at desc").
		Find(&rows).Error
	return rows, err
}

// ListRange returns a user's reflections with createdAt in [from, to),
// oldest first. Used to assemble weekly analysis payloads.
func (s *Service) ListRange(ctx context.Context, userID uint64, from, to time.Time) ([]Reflection, error) {
	var rows []Reflection
	err := s.DB.WithContext(ctx).
		Where("uid=? AND created_at >= ? AND created_at < ?", userID, from, to).
		Order("created_at asc").
		Find(&rows).Error
	return rows, err
}

// EditText is the single invariant-enforcing edit operation: any text change
// clears suggestions and rolesInvolved and re-opens the regeneration gate,
// so stale suggestions can never survive an edit.
func (s *Service) EditText(ctx context.Context, userID uint64, id uuid.UUID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}

	now := time.Now()
	return s.DB.WithContext(ctx).Model(&Reflection{}).
		Where("id=? AND uid=?", id, userID).
		Updates(map[string]any{
			"text":           text,
			"title":          DeriveTitle(text, ""),
			"updated_at":     now,
			"suggestions":    nil,
			"roles_involved": pq.StringArray{},
			"can_regenerate": true,
		}).Error
}

func (s *Service) Delete(ctx context.Context, userID uint64, id uuid.UUID) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reflection_id=?", id).Delete(&LikeIndex{}).Error; err != nil {
			return err
		}
		return tx.Where("id=? AND uid=?", id, userID).Delete(&Reflection{}).Error
	})
}

func (s *Service) SetVisibility(ctx context.Context, userID uint64, id uuid.UUID, isPublic, isAnonymous bool) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Model(&Reflection{}).
		Where("id=? AND uid=?", id, userID).
		Updates(map[string]any{
			"is_public":    isPublic,
			"is_anonymous": isAnonymous,
		}).Error
}

// GenerateSuggestions runs the per-role coaching call, gated on the
// regeneration rule, and persists the result with the gate closed.
func (s *Service) GenerateSuggestions(ctx context.Context, userID uint64, id uuid.UUID, roles []string) (map[string]ai.RoleSuggestion, error) {
	roles = cleanStrings(roles)
	if len(roles) == 0 {
		return nil, ErrNoRoles
	}

	r, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !ResolveCanRegenerate(r.CanRegenerate, r.Suggestions) {
		return nil, ErrRegenerateBlocked
	}

	suggestions, err := s.AI.RoleSuggestions(ctx, r.Text, roles)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(suggestions)
	if err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Model(&Reflection{}).
		Where("id=? AND uid=?", id, userID).
		Updates(map[string]any{
			"suggestions":    json.RawMessage(raw),
			"roles_involved": pq.StringArray(roles),
			"can_regenerate": false,
		}).Error; err != nil {
		return nil, err
	}

	return suggestions, nil
}

// ToggleLike flips an actor's like on a reflection inside one transaction.
// actorID may be an anonymous visitor token; likerUID, when present, keeps
// the signed-in user's like index in sync. A fresh like by the same actor is
// limited to one per minute; unliking is never limited.
func (s *Service) ToggleLike(ctx context.Context, id uuid.UUID, actorID string, likerUID *uint64) (likes int, liked bool, err error) {
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r Reflection
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id=?", id).First(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		likedBy := decodeBoolMap(r.LikedBy)
		rateLimit := decodeInt64Map(r.RateLimit)
		now := time.Now()

		if !likedBy[actorID] {
			if last, ok := rateLimit[actorID]; ok && now.UnixMilli()-last < likeRateLimitInterval.Milliseconds() {
				return ErrLikeRateLimited
			}
			likedBy[actorID] = true
			rateLimit[actorID] = now.UnixMilli()
			likes = r.Likes + 1
			liked = true

			if likerUID != nil {
				idx := LikeIndex{UID: *likerUID, ReflectionID: id, CreatedAt: now}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&idx).Error; err != nil {
					return err
				}
			}
		} else {
			delete(likedBy, actorID)
			likes = r.Likes - 1
			if likes < 0 {
				likes = 0
			}
			liked = false

			if likerUID != nil {
				if err := tx.Where("uid=? AND reflection_id=?", *likerUID, id).
					Delete(&LikeIndex{}).Error; err != nil {
					return err
				}
			}
		}

		return tx.Model(&Reflection{}).Where("id=?", id).Updates(map[string]any{
			"likes":      likes,
			"liked_by":   encodeJSONMap(likedBy),
			"rate_limit": encodeJSONMap(rateLimit),
		}).Error
	})
	return likes, liked, err
}

// PublicFeed lists public reflections, newest first. Anonymity is applied by
// the handler layer, which withholds owner identity for anonymous entries.
func (s *Service) PublicFeed(ctx context.Context, limit int) ([]Reflection, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var rows []Reflection
	err := s.DB.WithContext(ctx).
		Where("is_public = true").
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// GetPublic fetches one reflection for the public view; only public entries
// are visible to non-owners.
func (s *Service) GetPublic(ctx context.Context, id uuid.UUID) (Reflection, error) {
	var r Reflection
	if err := s.DB.WithContext(ctx).Where("id=? AND is_public = true", id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Reflection{}, ErrNotFound
		}
		return Reflection{}, err
	}
	return r, nil
}

// LikedReflections returns the public reflections a user has liked, most
// recently liked first.
func (s *Service) LikedReflections(ctx context.Context, userID uint64) ([]Reflection, error) {
	var rows []Reflection
	err := s.DB.WithContext(ctx).
		Joins("join like_indexes li on li.reflection_id = reflections.id").
		Where("li.uid = ?", userID).
		Order("li.created_at desc").
		Find(&rows).Error
	return rows, err
}

// DeriveTitle prefers an explicit title, otherwise takes the first line of
// the text, truncated on a word boundary.
func DeriveTitle(text, explicit string) string {
	if t := strings.TrimSpace(explicit); t != "" {
		return t
	}
	line := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	const max = 80
	if len(line) <= max {
		return line
	}
	cut := line[:max]
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return cut + "…"
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func decodeBoolMap(raw json.RawMessage) map[string]bool {
	m := map[string]bool{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &m)
	}
	return m
}

func decodeInt64Map(raw json.RawMessage) map[string]int64 {
	m := map[string]int64{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &m)
	}
	return m
}

func encodeJSONMap(m any) json.RawMessage {
	b, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(b)
}
