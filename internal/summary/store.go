package summary

import (
	"context"
	"errors"

	"revo/internal/calendar"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistence surface of the status machine. Period records are
// flat one-record-per-period documents keyed by (uid, periodId).
type Store interface {
	GetWeekly(ctx context.Context, uid uint64, weekID calendar.WeekID) (*WeeklySummary, error)
	GetWeeklyByIDs(ctx context.Context, uid uint64, weekIDs []calendar.WeekID) ([]WeeklySummary, error)
	// CreateWeeklyIfAbsent persists rec unless a record for its (uid, weekId)
	// key already exists. Returns the stored record and whether rec won.
	CreateWeeklyIfAbsent(ctx context.Context, rec *WeeklySummary) (*WeeklySummary, bool, error)

	GetMonthly(ctx context.Context, uid uint64, month calendar.MonthID) (*MonthlySummary, error)
	CreateMonthlyIfAbsent(ctx context.Context, rec *MonthlySummary) (*MonthlySummary, bool, error)
}

// GormStore backs Store with Postgres. The conditional creates rely on the
// unique (uid, period) indexes: the loser of a concurrent generate race gets
// RowsAffected == 0 and reads the winner's record back.
type GormStore struct {
	DB *gorm.DB
}

var periodConflict = clause.OnConflict{DoNothing: true}

func (s *GormStore) GetWeekly(ctx context.Context, uid uint64, weekID calendar.WeekID) (*WeeklySummary, error) {
	var rec WeeklySummary
	err := s.DB.WithContext(ctx).
		Where("uid=? AND week_id=?", uid, string(weekID)).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) GetWeeklyByIDs(ctx context.Context, uid uint64, weekIDs []calendar.WeekID) ([]WeeklySummary, error) {
	if len(weekIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(weekIDs))
	for i, w := range weekIDs {
		ids[i] = string(w)
	}

	var rows []WeeklySummary
	err := s.DB.WithContext(ctx).
		Where("uid=? AND week_id in ?", uid, ids).
		Find(&rows).Error
	return rows, err
}

func (s *GormStore) CreateWeeklyIfAbsent(ctx context.Context, rec *WeeklySummary) (*WeeklySummary, bool, error) {
	res := s.DB.WithContext(ctx).Clauses(periodConflict).Create(rec)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return rec, true, nil
	}
	existing, err := s.GetWeekly(ctx, rec.UID, calendar.WeekID(rec.WeekID))
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *GormStore) GetMonthly(ctx context.Context, uid uint64, month calendar.MonthID) (*MonthlySummary, error) {
	var rec MonthlySummary
	err := s.DB.WithContext(ctx).
		Where("uid=? AND month=?", uid, string(month)).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) CreateMonthlyIfAbsent(ctx context.Context, rec *MonthlySummary) (*MonthlySummary, bool, error) {
	res := s.DB.WithContext(ctx).Clauses(periodConflict).Create(rec)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return rec, true, nil
	}
	existing, err := s.GetMonthly(ctx, rec.UID, calendar.MonthID(rec.Month))
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}
