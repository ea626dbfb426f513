package db

import (
	"fmt"

	"revo/internal/auth"
	"revo/internal/reflection"
	"revo/internal/summary"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&auth.User{},
		&reflection.Reflection{},
		&reflection.LikeIndex{},
		&summary.WeeklySummary{},
		&summary.MonthlySummary{},
	); err != nil {
		return err
	}

	// Timeline and range queries scan (uid, created_at)
	if err := gdb.Exec(`create index if not exists idx_reflections_user_created on reflections(uid, created_at desc);`).Error; err != nil {
		return err
	}

	// Public feed only touches shared rows
	if err := gdb.Exec(`create index if not exists idx_reflections_public on reflections(created_at desc) where is_public = true;`).Error; err != nil {
		return err
	}

	// Helpful indexes
	stmts := []string{
		`create index if not exists idx_like_indexes_user_created on like_indexes(uid, created_at desc);`,
		`create index if not exists idx_weekly_user on weekly_summaries(uid);`,
		`create index if not exists idx_monthly_user on monthly_summaries(uid);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
