package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds database configuration
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Timeout  time.Duration
}

// NewConnection creates a new database connection
func NewConnection(ctx context.Context, cfg Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Provider hands out the shared *gorm.DB.
type Provider interface {
	Get(ctx context.Context) (*gorm.DB, error)
}

// OpenFunc opens a database handle.
type OpenFunc func(ctx context.Context) (*gorm.DB, error)

// Lazy is a process-wide database handle opened on first use.
//
// The first caller opens the connection and runs the init hooks while
// concurrent callers wait for it. Only a successful open is kept: after a
// failure the next caller tries again.
type Lazy struct {
	open  OpenFunc
	hooks []func(*gorm.DB) error

	mu sync.Mutex
	db *gorm.DB
}

// NewLazy returns a handle that calls open on first use and then runs each
// hook (migrations, for example) against the new connection.
func NewLazy(open OpenFunc, hooks ...func(*gorm.DB) error) *Lazy {
	return &Lazy{open: open, hooks: hooks}
}

// Get returns the shared handle, opening it if needed.
func (l *Lazy) Get(ctx context.Context) (*gorm.DB, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db != nil {
		return l.db, nil
	}

	db, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	for _, hook := range l.hooks {
		if err := hook(db); err != nil {
			closeQuietly(db)
			return nil, err
		}
	}

	l.db = db
	return db, nil
}

// Warm opens the handle without returning it.
func (l *Lazy) Warm(ctx context.Context) error {
	_, err := l.Get(ctx)
	return err
}

// Ready reports whether the handle has been opened.
func (l *Lazy) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db != nil
}

// Close closes the underlying connection if it was opened.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil {
		return nil
	}
	sqlDB, err := l.db.DB()
	l.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Static wraps an already-open handle. Used by tests and tools.
type Static struct {
	DB *gorm.DB
}

// Get returns the wrapped handle.
func (s Static) Get(context.Context) (*gorm.DB, error) {
	return s.DB, nil
}

func closeQuietly(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
