package archive_test

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"codeberg.org/mutker/windmon/internal/alert"
	"codeberg.org/mutker/windmon/internal/archive"
	"codeberg.org/mutker/windmon/internal/errors"
	"codeberg.org/mutker/windmon/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiresDBPath(t *testing.T) {
	_, err := archive.New("")
	require.Error(t, err)
	assert.Equal(t, archive.ErrInvalidDBPath, errors.CodeOf(err))
}

func TestRecordAlertAndSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	a, err := archive.New(path)
	require.NoError(t, err)

	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	require.NoError(t, a.RecordAlert(alert.New(alert.TypeOverspeed, "rotor over bound", alert.SeverityCritical, at)))

	summary := stats.Summary{
		DeviceID:    "turbine-001",
		Timestamp:   at,
		SampleCount: 300,
		PowerW:      stats.PowerStats{Mean: 42.5, EnergyWh: 3.54},
	}
	require.NoError(t, a.RecordSummary(summary))
	require.NoError(t, a.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	var alertType, message string
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*), type, message FROM alert_events").Scan(&count, &alertType, &message))
	assert.Equal(t, 1, count)
	assert.Equal(t, alert.TypeOverspeed, alertType)
	assert.Equal(t, "rotor over bound", message)

	var samples int
	var payload string
	require.NoError(t, db.QueryRow(
		"SELECT sample_count, payload FROM window_summaries").Scan(&samples, &payload))
	assert.Equal(t, 300, samples)
	assert.Contains(t, payload, `"device_id":"turbine-001"`)
}

func TestSummaryUpsertByTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	a, err := archive.New(path)
	require.NoError(t, err)
	defer a.Close()

	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	require.NoError(t, a.RecordSummary(stats.Summary{Timestamp: at, SampleCount: 100}))
	require.NoError(t, a.RecordSummary(stats.Summary{Timestamp: at, SampleCount: 300}))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var count, samples int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*), sample_count FROM window_summaries").Scan(&count, &samples))
	assert.Equal(t, 1, count)
	assert.Equal(t, 300, samples)
}

func TestReopenExistingArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")

	a, err := archive.New(path)
	require.NoError(t, err)
	require.NoError(t, a.RecordAlert(alert.New(alert.TypeSensorFault, "wind channel parked", alert.SeverityWarning, time.Now())))
	require.NoError(t, a.Close())

	// Schema init is idempotent and existing rows survive
	a, err = archive.New(path)
	require.NoError(t, err)
	require.NoError(t, a.RecordAlert(alert.New(alert.TypeSensorFault, "wind channel parked", alert.SeverityWarning, time.Now())))
	require.NoError(t, a.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM alert_events").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestSinkSwallowsAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	a, err := archive.New(path)
	require.NoError(t, err)
	sink := a.Sink()
	require.NoError(t, a.Close())

	// Alerting must never panic or propagate storage failures
	assert.NotPanics(t, func() {
		sink.Dispatch(alert.New(alert.TypeOverspeed, "late event", alert.SeverityInfo, time.Now()))
	})
}
