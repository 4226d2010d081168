// Package gormstore persists users, sessions and participants in PostgreSQL or SQLite through gorm.
package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenPostgres connects to PostgreSQL and migrates the schema.
func OpenPostgres(dsn string, maxConns int, logger *zap.SugaredLogger) (*gorm.DB, error) {
	db, err := open(postgres.Open(dsn), logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
		sqlDB.SetMaxIdleConns(maxConns / 2)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// OpenSQLite opens (or creates) an SQLite database. A single connection serialises writers.
func OpenSQLite(path string, logger *zap.SugaredLogger) (*gorm.DB, error) {
	db, err := open(sqlite.Open(path), logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func open(dialector gorm.Dialector, logger *zap.SugaredLogger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newZapLogger(logger, gormlogger.Warn),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Infow("database connected", "dialect", dialector.Name())
	}
	return db, nil
}

// Migrate creates tables and indexes. Safe to run repeatedly.
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(&UserModel{}, &SessionModel{}, &ParticipantModel{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// At most one open participation per (session, user).
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_session_participants_active
		ON session_participants (session_id, user_id) WHERE left_at IS NULL`).Error; err != nil {
		return fmt.Errorf("failed to create active participation index: %w", err)
	}
	return nil
}

// Ping checks the underlying connection.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
