package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"signalgate.app/receiver/internal/logger"
	"signalgate.app/receiver/models"
)

const indent = "    "

// FileStorage keeps licenses and the latest signal in two JSON documents.
// Nothing is cached: every call goes to disk.
type FileStorage struct {
	licensePath string
	signalPath  string

	licenseMu sync.Mutex
	signalMu  sync.Mutex
}

func NewFileStorage(licensePath, signalPath string) *FileStorage {
	return &FileStorage{
		licensePath: licensePath,
		signalPath:  signalPath,
	}
}

func (f *FileStorage) LoadAll(ctx context.Context) (models.Licenses, error) {
	f.licenseMu.Lock()
	defer f.licenseMu.Unlock()
	return f.loadLicenses()
}

func (f *FileStorage) SaveAll(ctx context.Context, licenses models.Licenses) error {
	f.licenseMu.Lock()
	defer f.licenseMu.Unlock()
	return f.saveLicenses(licenses)
}

func (f *FileStorage) UpdateLicenses(ctx context.Context, fn func(models.Licenses) bool) error {
	f.licenseMu.Lock()
	defer f.licenseMu.Unlock()

	licenses, err := f.loadLicenses()
	if err != nil {
		return err
	}
	if !fn(licenses) {
		return nil
	}
	return f.saveLicenses(licenses)
}

func (f *FileStorage) loadLicenses() (models.Licenses, error) {
	data, err := os.ReadFile(f.licensePath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("license file does not exist, starting with empty collection", map[string]interface{}{
				"path": f.licensePath,
			})
			return make(models.Licenses), nil
		}
		return nil, fmt.Errorf("failed to read licenses: %w", err)
	}

	licenses := make(models.Licenses)
	if err := json.Unmarshal(data, &licenses); err != nil {
		return nil, fmt.Errorf("failed to parse licenses %s: %w", f.licensePath, err)
	}
	if licenses == nil {
		licenses = make(models.Licenses)
	}
	return licenses, nil
}

func (f *FileStorage) saveLicenses(licenses models.Licenses) error {
	if licenses == nil {
		licenses = make(models.Licenses)
	}
	data, err := json.MarshalIndent(licenses, "", indent)
	if err != nil {
		return fmt.Errorf("failed to encode licenses: %w", err)
	}
	if err := writeFileAtomic(f.licensePath, data); err != nil {
		return fmt.Errorf("failed to save licenses: %w", err)
	}
	return nil
}

func (f *FileStorage) LoadLatest(ctx context.Context) (models.Signal, error) {
	f.signalMu.Lock()
	defer f.signalMu.Unlock()

	data, err := os.ReadFile(f.signalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Signal{}, nil
		}
		return models.Signal{}, fmt.Errorf("failed to read signal: %w", err)
	}

	signal, err := models.ParseSignal(data)
	if err != nil {
		return models.Signal{}, fmt.Errorf("failed to parse signal %s: %w", f.signalPath, err)
	}
	return signal, nil
}

func (f *FileStorage) Overwrite(ctx context.Context, signal models.Signal) error {
	f.signalMu.Lock()
	defer f.signalMu.Unlock()

	var buf bytes.Buffer
	if err := json.Indent(&buf, signal.Bytes(), "", indent); err != nil {
		return fmt.Errorf("failed to encode signal: %w", err)
	}
	if err := writeFileAtomic(f.signalPath, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to save signal: %w", err)
	}
	return nil
}

func (f *FileStorage) Close() error {
	return nil
}

// writeFileAtomic replaces path with data via a synced temporary file and a
// rename, so readers see either the old document or the new one.
func writeFileAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return err
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return err
	}
	return nil
}
