package reflection

import (
	"context"
	"time"
)

// Stats are the dashboard counters for one user. Week and month windows are
// bounded by the caller in the user's own timezone.
type Stats struct {
	TotalReflections       int64 `json:"totalReflections"`
	TotalPublicReflections int64 `json:"totalPublicReflections"`
	TotalLikesReceived     int64 `json:"totalLikesReceived"`
	ReflectionsThisWeek    int64 `json:"reflectionsThisWeek"`
	ReflectionsThisMonth   int64 `json:"reflectionsThisMonth"`
}

func (s *Service) Stats(ctx context.Context, userID uint64, weekStart, monthStart time.Time) (Stats, error) {
	var out Stats
	db := s.DB.WithContext(ctx)

	if err := db.Model(&Reflection{}).
		Where("uid=?", userID).
		Count(&out.TotalReflections).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&Reflection{}).
		Where("uid=? AND is_public = true", userID).
		Count(&out.TotalPublicReflections).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&Reflection{}).
		Where("uid=? AND created_at >= ?", userID, weekStart).
		Count(&out.ReflectionsThisWeek).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&Reflection{}).
		Where("uid=? AND created_at >= ?", userID, monthStart).
		Count(&out.ReflectionsThisMonth).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&Reflection{}).
		Select("coalesce(sum(likes), 0)").
		Where("uid=? AND is_public = true", userID).
		Scan(&out.TotalLikesReceived).Error; err != nil {
		return Stats{}, err
	}

	return out, nil
}
