package archive

import (
	"database/sql"

	"codeberg.org/mutker/windmon/internal/errors"
	"codeberg.org/mutker/windmon/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS alert_events (
	       id         INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp  INTEGER NOT NULL,
	       type       TEXT NOT NULL,
	       severity   INTEGER NOT NULL CHECK (severity BETWEEN 1 AND 3),
	       message    TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS window_summaries (
	       timestamp     INTEGER PRIMARY KEY,
	       sample_count  INTEGER NOT NULL,
	       wind_mean     REAL NOT NULL,
	       wind_max      REAL NOT NULL,
	       rpm_mean      REAL NOT NULL,
	       power_mean    REAL NOT NULL,
	       energy_wh     REAL NOT NULL,
	       cp_mean       REAL NOT NULL,
	       lambda_mean   REAL NOT NULL,
	       payload       TEXT NOT NULL
	   );`

	insertAlertSQL = `
    INSERT INTO alert_events (timestamp, type, severity, message)
    VALUES (?, ?, ?, ?)`

	insertSummarySQL = `
    INSERT INTO window_summaries (
        timestamp, sample_count,
        wind_mean, wind_max, rpm_mean,
        power_mean, energy_wh, cp_mean, lambda_mean, payload
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(timestamp) DO UPDATE SET
        sample_count = excluded.sample_count,
        wind_mean = excluded.wind_mean,
        wind_max = excluded.wind_max,
        rpm_mean = excluded.rpm_mean,
        power_mean = excluded.power_mean,
        energy_wh = excluded.energy_wh,
        cp_mean = excluded.cp_mean,
        lambda_mean = excluded.lambda_mean,
        payload = excluded.payload`
)

// initSchema creates the archive schema and records the version.
// Idempotent; safe to run against an already-initialized database.
func initSchema(db *sql.DB) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				logger.Debug().Err(err).Msg("Failed to rollback schema transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	version, err := schemaVersion(tx)
	if err != nil {
		return err
	}
	if version == 0 {
		if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
			return errFactory.Wrap(ErrSchemaInitFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	logger.Debug().Int("version", SchemaVersion).Msg("Archive schema ready")

	return nil
}

func schemaVersion(tx *sql.Tx) (int, error) {
	var version int
	err := tx.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.New().Wrap(ErrSchemaInitFailed, err)
	}

	return version, nil
}
