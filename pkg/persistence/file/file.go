// Package file provides JSON file persistence for targets, change entries and audit records.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/changewatch/pkg/persistence"
)

const (
	targetsFile       = "targets.json"
	changeEntriesFile = "change_entries.json"
	auditRecordsFile  = "audit_records.json"
)

// Persistence implements persistence.Persistence on top of a directory.
type Persistence struct {
	root            string
	targetRepo      *TargetRepository
	changeEntryRepo *ChangeEntryRepository
	auditRecordRepo *AuditRecordRepository
}

// NewPersistence loads (or creates) the store under root. A "file://" prefix is accepted.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.TrimPrefix(root, "file://")

	if err := os.MkdirAll(cleanRoot, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	targets, err := newTargetRepository(filepath.Join(cleanRoot, targetsFile))
	if err != nil {
		return nil, err
	}

	entries, err := newChangeEntryRepository(filepath.Join(cleanRoot, changeEntriesFile))
	if err != nil {
		return nil, err
	}

	records, err := newAuditRecordRepository(filepath.Join(cleanRoot, auditRecordsFile))
	if err != nil {
		return nil, err
	}

	return &Persistence{
		root:            cleanRoot,
		targetRepo:      targets,
		changeEntryRepo: entries,
		auditRecordRepo: records,
	}, nil
}

func (fp *Persistence) TargetRepository() persistence.TargetRepository {
	return fp.targetRepo
}

func (fp *Persistence) ChangeEntryRepository() persistence.ChangeEntryRepository {
	return fp.changeEntryRepo
}

func (fp *Persistence) AuditRecordRepository() persistence.AuditRecordRepository {
	return fp.auditRecordRepo
}

// HealthCheck verifies the root directory still exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); err != nil {
		return err
	}

	return nil
}

// Close is a no-op; every write is flushed before it returns.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// readJSON decodes path into v. A missing file leaves v untouched.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return nil
}

// writeJSON replaces path atomically through a temp file in the same directory.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}
