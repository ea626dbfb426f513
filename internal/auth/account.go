package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmptyRole    = errors.New("role cannot be empty")
)

// Account manages the per-user role list and timezone.
type Account struct {
	DB *gorm.DB

	// DefaultTimeZone is used when a user has no stored zone and the
	// request carries no usable browser guess.
	DefaultTimeZone string
}

func (a *Account) Roles(ctx context.Context, userID uint64) ([]string, error) {
	var u User
	if err := a.DB.WithContext(ctx).First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return cleanRoles(u.Roles), nil
}

// AddRole appends a role unless an equal role (case-insensitive) exists.
func (a *Account) AddRole(ctx context.Context, userID uint64, role string) ([]string, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return nil, ErrEmptyRole
	}

	var roles []string
	err := a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		roles = cleanRoles(u.Roles)
		lower := strings.ToLower(role)
		for _, existing := range roles {
			if strings.ToLower(existing) == lower {
				return nil
			}
		}

		roles = append(roles, role)
		return tx.Model(&User{}).Where("id=?", userID).
			Update("roles", pq.StringArray(roles)).Error
	})
	return roles, err
}

func (a *Account) RemoveRole(ctx context.Context, userID uint64, role string) ([]string, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return nil, ErrEmptyRole
	}

	var roles []string
	err := a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		lower := strings.ToLower(role)
		roles = make([]string, 0, len(u.Roles))
		for _, existing := range cleanRoles(u.Roles) {
			if strings.ToLower(existing) != lower {
				roles = append(roles, existing)
			}
		}

		return tx.Model(&User{}).Where("id=?", userID).
			Update("roles", pq.StringArray(roles)).Error
	})
	return roles, err
}

// ResolveLocation returns the zone governing the user's period boundaries.
// A stored zone wins; otherwise a valid browser guess is persisted on first
// use; otherwise the configured default applies.
func (a *Account) ResolveLocation(ctx context.Context, userID uint64, browserGuess string) (*time.Location, error) {
	var u User
	if err := a.DB.WithContext(ctx).First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if u.TimeZone != "" {
		if loc, err := time.LoadLocation(u.TimeZone); err == nil {
			return loc, nil
		}
	}

	if guess := strings.TrimSpace(browserGuess); guess != "" {
		if loc, err := time.LoadLocation(guess); err == nil {
			if err := a.DB.WithContext(ctx).Model(&User{}).
				Where("id=? AND time_zone=''", userID).
				Update("time_zone", guess).Error; err != nil {
				return nil, err
			}
			return loc, nil
		}
	}

	return time.LoadLocation(a.DefaultTimeZone)
}

// SetTimeZone stores an explicit zone choice, replacing any guess.
func (a *Account) SetTimeZone(ctx context.Context, userID uint64, zone string) error {
	if _, err := time.LoadLocation(strings.TrimSpace(zone)); err != nil {
		return err
	}
	res := a.DB.WithContext(ctx).Model(&User{}).
		Where("id=?", userID).
		Update("time_zone", strings.TrimSpace(zone))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteAccount removes the user and everything namespaced under them.
func (a *Account) DeleteAccount(ctx context.Context, userID uint64) error {
	return a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stmts := []string{
			`delete from like_indexes where uid=?`,
			`delete from reflections where uid=?`,
			`delete from weekly_summaries where uid=?`,
			`delete from monthly_summaries where uid=?`,
			`delete from users where id=?`,
		}
		for _, s := range stmts {
			if err := tx.Exec(s, userID).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func cleanRoles(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}
