package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"signalgate.app/receiver/internal/logger"
	"signalgate.app/receiver/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLiteStorage struct {
	db   *sql.DB
	path string

	licenseMu sync.Mutex
	signalMu  sync.Mutex
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; sqlite serialises anyway
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{
		db:   db,
		path: path,
	}

	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) migrate() error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}

	driver, err := sqlitemigrate.WithInstance(s.db, &sqlitemigrate.Config{})
	if err != nil {
		return err
	}

	// m.Close would close s.db through the driver, so it is left open.
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, err := m.Version()
	if err == nil {
		logger.Debug("database schema ready", map[string]interface{}{
			"path":    s.path,
			"version": version,
			"dirty":   dirty,
		})
	}
	return nil
}

func (s *SQLiteStorage) LoadAll(ctx context.Context) (models.Licenses, error) {
	s.licenseMu.Lock()
	defer s.licenseMu.Unlock()
	return s.loadLicenses(ctx)
}

func (s *SQLiteStorage) SaveAll(ctx context.Context, licenses models.Licenses) error {
	s.licenseMu.Lock()
	defer s.licenseMu.Unlock()
	return s.saveLicenses(ctx, licenses)
}

func (s *SQLiteStorage) UpdateLicenses(ctx context.Context, fn func(models.Licenses) bool) error {
	s.licenseMu.Lock()
	defer s.licenseMu.Unlock()

	licenses, err := s.loadLicenses(ctx)
	if err != nil {
		return err
	}
	if !fn(licenses) {
		return nil
	}
	return s.saveLicenses(ctx, licenses)
}

func (s *SQLiteStorage) loadLicenses(ctx context.Context) (models.Licenses, error) {
	query := `SELECT id, owner, enabled, created FROM licenses`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query licenses: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", map[string]interface{}{"error": err.Error()})
		}
	}()

	licenses := make(models.Licenses)
	for rows.Next() {
		var (
			id      string
			license models.License
		)
		if err := rows.Scan(&id, &license.Owner, &license.Enabled, &license.Created); err != nil {
			return nil, fmt.Errorf("failed to scan license: %w", err)
		}
		licenses[id] = license
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating licenses: %w", err)
	}

	return licenses, nil
}

// saveLicenses replaces the table contents with licenses in one transaction.
func (s *SQLiteStorage) saveLicenses(ctx context.Context, licenses models.Licenses) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM licenses`); err != nil {
		return fmt.Errorf("failed to clear licenses: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO licenses (id, owner, enabled, created) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare license insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range licenses.IDs() {
		license := licenses[id]
		if _, err := stmt.ExecContext(ctx, id, license.Owner, license.Enabled, license.Created); err != nil {
			return fmt.Errorf("failed to save license: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit licenses: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) LoadLatest(ctx context.Context) (models.Signal, error) {
	s.signalMu.Lock()
	defer s.signalMu.Unlock()

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM latest_signal WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return models.Signal{}, nil
	}
	if err != nil {
		return models.Signal{}, fmt.Errorf("failed to load signal: %w", err)
	}

	signal, err := models.ParseSignal([]byte(payload))
	if err != nil {
		return models.Signal{}, fmt.Errorf("failed to parse stored signal: %w", err)
	}
	return signal, nil
}

func (s *SQLiteStorage) Overwrite(ctx context.Context, signal models.Signal) error {
	s.signalMu.Lock()
	defer s.signalMu.Unlock()

	query := `INSERT OR REPLACE INTO latest_signal (id, payload, received_at) VALUES (1, ?, CURRENT_TIMESTAMP)`
	if _, err := s.db.ExecContext(ctx, query, string(signal.Bytes())); err != nil {
		return fmt.Errorf("failed to save signal: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
