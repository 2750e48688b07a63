// Package archive persists alert events and closed window summaries to
// a local sqlite database. Alerts are always recorded here before any
// transmission is attempted.
package archive

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"codeberg.org/mutker/windmon/internal/alert"
	"codeberg.org/mutker/windmon/internal/errors"
	"codeberg.org/mutker/windmon/internal/logger"
	"codeberg.org/mutker/windmon/internal/stats"
)

const defaultDirPerm = 0o755

// Archive is the sqlite-backed event and summary store.
type Archive struct {
	db *sql.DB
	mu sync.Mutex
}

func New(dbPath string) (*Archive, error) {
	errFactory := errors.New()

	if dbPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	// WAL keeps single-writer appends cheap and crash-safe
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_auto_vacuum=2")
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug().Str("path", dbPath).Int("schema_version", SchemaVersion).Msg("Archive initialized")

	return &Archive{db: db}, nil
}

// RecordAlert appends one alert event.
func (a *Archive) RecordAlert(e alert.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.Exec(insertAlertSQL,
		e.Timestamp.Unix(),
		e.Type,
		int64(e.Severity),
		e.Message,
	)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

// RecordSummary stores one closed window: key channels in columns for
// ad-hoc queries, plus the full wire payload verbatim.
func (a *Archive) RecordSummary(s stats.Summary) error {
	errFactory := errors.New()

	payload, err := json.Marshal(s)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	_, err = a.db.Exec(insertSummarySQL,
		s.Timestamp.Unix(),
		int64(s.SampleCount),
		s.WindSpeedMS.Mean,
		s.WindSpeedMS.Max,
		s.RotorRPM.Mean,
		s.PowerW.Mean,
		s.PowerW.EnergyWh,
		s.Performance.CpMean,
		s.Performance.LambdaMean,
		string(payload),
	)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

// Sink adapts the archive to the alert fan-out. Recording failures are
// logged and swallowed; alerting must never fail the sampling path.
func (a *Archive) Sink() alert.Sink {
	return alert.SinkFunc(func(e alert.Event) {
		if err := a.RecordAlert(e); err != nil {
			logger.Error().Err(err).Str("type", e.Type).Msg("Failed to archive alert event")
		}
	})
}

// Close checkpoints the WAL and closes the database.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	errFactory := errors.New()

	if _, err := a.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}
	if err := a.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	return nil
}
