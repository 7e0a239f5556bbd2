package storage

import (
	"context"
	"fmt"
	"sync"

	"signalgate.app/receiver/models"
)

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// LicenseStore holds the license allow-list. Reads and writes always cover
// the whole collection.
type LicenseStore interface {
	// LoadAll returns every license. A store that has never been written
	// returns an empty collection.
	LoadAll(ctx context.Context) (models.Licenses, error)
	SaveAll(ctx context.Context, licenses models.Licenses) error
	// UpdateLicenses loads the collection, hands it to fn and saves it when
	// fn reports a change. The cycle holds the store's lock throughout.
	UpdateLicenses(ctx context.Context, fn func(models.Licenses) bool) error
}

// SignalStore holds the single most recently accepted signal.
type SignalStore interface {
	LoadLatest(ctx context.Context) (models.Signal, error)
	Overwrite(ctx context.Context, signal models.Signal) error
}

type Storage interface {
	LicenseStore
	SignalStore
	Close() error
}

type Options struct {
	Driver       string
	LicenseFile  string
	SignalFile   string
	DatabasePath string
}

func Open(opts Options) (Storage, error) {
	switch opts.Driver {
	case DriverFile, "":
		return NewFileStorage(opts.LicenseFile, opts.SignalFile), nil
	case DriverSQLite:
		return NewSQLiteStorage(opts.DatabasePath)
	case DriverMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

type MemoryStorage struct {
	mu       sync.Mutex
	Licenses models.Licenses
	Signal   models.Signal
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{Licenses: make(models.Licenses)}
}

func (m *MemoryStorage) LoadAll(ctx context.Context) (models.Licenses, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Licenses.Clone(), nil
}

func (m *MemoryStorage) SaveAll(ctx context.Context, licenses models.Licenses) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Licenses = licenses.Clone()
	return nil
}

func (m *MemoryStorage) UpdateLicenses(ctx context.Context, fn func(models.Licenses) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	licenses := m.Licenses.Clone()
	if fn(licenses) {
		m.Licenses = licenses
	}
	return nil
}

func (m *MemoryStorage) LoadLatest(ctx context.Context) (models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Signal, nil
}

func (m *MemoryStorage) Overwrite(ctx context.Context, signal models.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Signal = signal
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
