// Package kvstore provides the opaque local key-value store the admin panel
// uses for session persistence, in memory or backed by a GORM database.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is an opaque string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Memory is a process-local Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete implements Store. Deleting an absent key is not an error.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Entry is the row layout of the GORM-backed store.
type Entry struct {
	Key       string `gorm:"column:entry_key;primaryKey;size:255"`
	Value     string `gorm:"column:entry_value;type:text;not null"`
	UpdatedAt time.Time
}

// TableName pins the table name regardless of naming strategy.
func (Entry) TableName() string {
	return "kv_entries"
}

// GORM is a Store persisted through a GORM connection.
type GORM struct {
	db *gorm.DB
}

// NewGORM migrates the entry table on db and returns a store using it.
func NewGORM(db *gorm.DB) (*GORM, error) {
	if db == nil {
		return nil, fmt.Errorf("kvstore: database handle is required")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("kvstore: migrate: %w", err)
	}
	return &GORM{db: db}, nil
}

// Get implements Store.
func (g *GORM) Get(ctx context.Context, key string) (string, error) {
	var e Entry
	err := g.db.WithContext(ctx).Where("entry_key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kvstore: get %q: %w", key, err)
	}
	return e.Value, nil
}

// Set implements Store, inserting or overwriting key.
func (g *GORM) Set(ctx context.Context, key, value string) error {
	e := Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("kvstore: set %q: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (g *GORM) Delete(ctx context.Context, key string) error {
	if err := g.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("kvstore: delete %q: %w", key, err)
	}
	return nil
}

// Dialector returns the GORM dialector for driver ("sqlite" or "postgres").
// For sqlite an empty dsn means a private in-memory database.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite", "":
		if dsn == "" {
			dsn = ":memory:"
		}
		return sqlite.Open(dsn), nil
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("kvstore: postgres requires a DSN")
		}
		return postgres.Open(dsn), nil
	}
	return nil, fmt.Errorf("kvstore: unsupported driver %q (use sqlite or postgres)", driver)
}

// Open connects to the configured database.
func Open(driver, dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	dialector, err := Dialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", driver, err)
	}
	if dsn == "" || dsn == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("kvstore: open %s: %w", driver, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}
