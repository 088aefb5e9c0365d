package preferences

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thyholm1234/DOF.not/internal/errors"
	"github.com/thyholm1234/DOF.not/internal/logger"
)

// StoredRecord is one user's record in one namespace
type StoredRecord struct {
	Namespace string `gorm:"primaryKey;size:32"`
	UserID    string `gorm:"primaryKey;size:128"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName keeps the table name stable across struct renames
func (StoredRecord) TableName() string {
	return "preference_records"
}

// GormStore keeps records in SQLite or MySQL
type GormStore struct {
	db *gorm.DB
}

// slowQueryThreshold is when a store query is logged as slow
const slowQueryThreshold = 200 * time.Millisecond

// OpenSQLite opens (and creates) a SQLite database at path
func OpenSQLite(path string) (*GormStore, error) {
	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Component("preferences").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
	}
	return openGorm(sqlite.Open(path), "sqlite")
}

// OpenMySQL connects to a MySQL database
func OpenMySQL(dsn string) (*GormStore, error) {
	return openGorm(mysql.Open(dsn), "mysql")
}

// NewGormStore wraps an existing connection and migrates the schema
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&StoredRecord{}); err != nil {
		return nil, errors.New(err).
			Component("preferences").
			Category(errors.CategoryDatabase).
			Context("operation", "auto-migrate").
			Build()
	}
	return &GormStore{db: db}, nil
}

func openGorm(dialector gorm.Dialector, driver string) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(slowQueryThreshold, gormlogger.Warn)})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open %s database: %w", driver, err)).
			Component("preferences").
			Category(errors.CategoryDatabase).
			Context("driver", driver).
			Build()
	}
	// one connection keeps an in-memory SQLite database shared
	if sqlDB, err := db.DB(); err == nil && driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	}
	return NewGormStore(db)
}

// Get implements Store
func (s *GormStore) Get(ctx context.Context, namespace, userID string) ([]byte, bool, error) {
	var rec StoredRecord
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND user_id = ?", namespace, userID).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.New(err).
			Component("preferences").
			Category(errors.CategoryDatabase).
			Context("operation", "get-record").
			Context("namespace", namespace).
			Build()
	}
	return rec.Value, true, nil
}

// Put implements Store
func (s *GormStore) Put(ctx context.Context, namespace, userID string, value []byte) error {
	rec := &StoredRecord{
		Namespace: namespace,
		UserID:    userID,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return errors.New(err).
			Component("preferences").
			Category(errors.CategoryDatabase).
			Context("operation", "put-record").
			Context("namespace", namespace).
			Build()
	}
	return nil
}

// Close releases the underlying connection pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormLogger routes GORM messages to the module logger
type gormLogger struct {
	slowThreshold time.Duration
	level         gormlogger.LogLevel
}

func newGormLogger(slowThreshold time.Duration, level gormlogger.LogLevel) *gormLogger {
	return &gormLogger{slowThreshold: slowThreshold, level: level}
}

// LogMode implements gormlogger.Interface
func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info implements gormlogger.Interface
func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		GetLogger().WithContext(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

// Warn implements gormlogger.Interface
func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		GetLogger().WithContext(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

// Error implements gormlogger.Interface
func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		GetLogger().WithContext(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

// Trace implements gormlogger.Interface
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		GetLogger().WithContext(ctx).Error("store query failed",
			logger.String("sql", sql),
			logger.Int64("rows", rows),
			logger.Duration("duration", elapsed),
			logger.Error(err))
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		GetLogger().WithContext(ctx).Warn("slow store query",
			logger.String("sql", sql),
			logger.Int64("rows", rows),
			logger.Duration("duration", elapsed))
	}
}
