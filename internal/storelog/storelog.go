// Package storelog appends derived records to the local sample log: an
// append-only text file, one line per sample, with buffered writes
// flushed on a deadline. Loss on abrupt power failure is bounded to one
// flush interval; on persistent write failure the log degrades to
// memory-only buffering with drop-oldest, and every drop is counted.
package storelog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/windmon/internal/alert"
	"codeberg.org/mutker/windmon/internal/derive"
	"codeberg.org/mutker/windmon/internal/errors"
	"codeberg.org/mutker/windmon/internal/faults"
	"codeberg.org/mutker/windmon/internal/logger"
	"codeberg.org/mutker/windmon/internal/ring"
	"codeberg.org/mutker/windmon/internal/sensor"
)

const (
	// Sentinel marks an invalid field in the log. Never blank, never a
	// NaN literal, so the format stays trivially parseable.
	Sentinel = "-999"

	// Header is the fixed column order of the sample log.
	Header = "timestamp,wind_speed,rotor_rpm,bus_voltage,bus_current,power," +
		"ambient_temp,ambient_pressure,ambient_humidity,air_density,lambda,cp"

	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

type Config struct {
	Dir              string
	FlushInterval    time.Duration
	BufferSize       int
	MaxWriteFailures int
}

func (c *Config) applyDefaults() {
	if c.FlushInterval <= 0 {
		c.FlushInterval = 10 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 50
	}
	if c.MaxWriteFailures <= 0 {
		c.MaxWriteFailures = 10
	}
}

// Log is the local persistence log. Not safe for concurrent use; all
// calls happen on the cooperative main loop.
type Log struct {
	cfg     Config
	monitor *faults.Monitor
	alerts  alert.Sink

	buf       *ring.Buffer[derive.Record]
	nextFlush time.Time
	failures  int
	degraded  bool
}

func New(cfg Config, monitor *faults.Monitor, alerts alert.Sink) (*Log, error) {
	cfg.applyDefaults()
	errFactory := errors.New()

	if cfg.Dir == "" {
		return nil, errFactory.WithMessage(errors.ErrInvalidConfig, "storelog dir must not be empty")
	}
	if err := os.MkdirAll(cfg.Dir, defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(errors.ErrInitFailed, err)
	}

	return &Log{
		cfg:       cfg,
		monitor:   monitor,
		alerts:    alerts,
		buf:       ring.New[derive.Record](cfg.BufferSize),
		nextFlush: time.Now().Add(cfg.FlushInterval),
	}, nil
}

// Append buffers one record. If the buffer would overflow it is flushed
// first; in degraded mode the oldest buffered record is dropped instead
// (the drop is counted, never silent).
func (l *Log) Append(rec derive.Record) {
	if l.buf.Full() && !l.degraded {
		if err := l.flush(); err != nil {
			logger.Debug().Err(err).Msg("Overflow flush failed; falling back to drop-oldest")
		}
	}

	if evicted := l.buf.Push(rec); evicted {
		logger.Warn().
			Uint64("dropped_total", l.buf.Dropped()).
			Msg("Persistence buffer full; oldest record dropped")
	}
}

// Tick drives deadline flushing; call once per main-loop tick. Flush
// attempts continue on cadence even in degraded mode so an explicit
// successful write can clear the fault.
func (l *Log) Tick(now time.Time) {
	if now.Before(l.nextFlush) {
		return
	}
	l.nextFlush = now.Add(l.cfg.FlushInterval)

	if err := l.flush(); err != nil {
		logger.Debug().Err(err).Msg("Scheduled flush failed")
	}
}

// Flush forces buffered records to durable storage.
func (l *Log) Flush() error {
	return l.flush()
}

// Dropped returns the count of records lost to the drop-oldest policy.
func (l *Log) Dropped() uint64 {
	return l.buf.Dropped()
}

// Degraded reports whether the log is in memory-only mode.
func (l *Log) Degraded() bool {
	return l.degraded
}

func (l *Log) flush() error {
	if l.buf.Len() == 0 {
		return nil
	}

	if err := l.writeAll(); err != nil {
		l.onWriteFailure(err)
		return err
	}

	l.buf.Reset()
	l.onWriteSuccess()

	return nil
}

// writeAll appends every buffered record to the current day's file. The
// file is opened per flush so the header/rotation check runs before
// every open and a crash mid-interval never holds a stale handle.
func (l *Log) writeAll() error {
	errFactory := errors.New()

	path := l.currentPath(time.Now().UTC())
	f, fresh, err := openLogFile(path)
	if err != nil {
		return errFactory.Wrap(errors.ErrStorageWrite, err)
	}
	defer f.Close()

	var sb strings.Builder
	if fresh {
		sb.WriteString(Header)
		sb.WriteByte('\n')
	}
	l.buf.Do(func(rec derive.Record) {
		sb.WriteString(FormatRecord(rec))
		sb.WriteByte('\n')
	})

	if _, err := f.WriteString(sb.String()); err != nil {
		return errFactory.Wrap(errors.ErrStorageWrite, err)
	}
	if err := f.Sync(); err != nil {
		return errFactory.Wrap(errors.ErrStorageFlush, err)
	}

	logger.Debug().Int("records", l.buf.Len()).Str("file", path).Msg("Flushed records to sample log")

	return nil
}

// openLogFile opens the log for append, reporting whether the header
// still needs to be written. The size check makes the header idempotent:
// exactly one header per file no matter how often the path is reopened.
func openLogFile(path string) (*os.File, bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	if err != nil {
		return nil, false, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, err
	}

	return f, info.Size() == 0, nil
}

// currentPath gives one file per UTC day.
func (l *Log) currentPath(now time.Time) string {
	return filepath.Join(l.cfg.Dir, "windmon-"+now.Format("20060102")+".csv")
}

func (l *Log) onWriteSuccess() {
	l.failures = 0
	if l.degraded {
		l.degraded = false
		l.monitor.Clear(faults.Storage)
		l.alerts.Dispatch(alert.New(alert.TypeStorageRecovered,
			"sample log writable again; resuming durable persistence",
			alert.SeverityInfo, time.Now().UTC()))
		logger.Info().Msg("Storage recovered; durable persistence resumed")
	}
}

func (l *Log) onWriteFailure(err error) {
	l.failures++
	if l.degraded || l.failures < l.cfg.MaxWriteFailures {
		return
	}

	l.degraded = true
	l.monitor.Set(faults.Storage)
	l.alerts.Dispatch(alert.New(alert.TypeStorageDegraded,
		fmt.Sprintf("sample log degraded to memory-only after %d write failures: %v", l.failures, err),
		alert.SeverityCritical, time.Now().UTC()))
	logger.Error().Err(err).Int("failures", l.failures).Msg("Storage degraded to memory-only buffering")
}

// FormatRecord renders one record in the fixed column order, writing the
// sentinel for invalid fields.
func FormatRecord(rec derive.Record) string {
	fields := []string{
		rec.Timestamp.UTC().Format(time.RFC3339),
		formatValue(rec.WindSpeed),
		formatValue(rec.RotorRPM),
		formatValue(rec.BusVoltage),
		formatValue(rec.BusCurrent),
		formatValue(rec.Power),
		formatValue(rec.AmbientTemp),
		formatValue(rec.AmbientPressure),
		formatValue(rec.AmbientHumidity),
		formatValue(rec.AirDensity),
		formatValue(rec.TipSpeedRatio),
		formatValue(rec.PowerCoefficient),
	}

	return strings.Join(fields, ",")
}

func formatValue(v sensor.Value) string {
	if !v.Valid {
		return Sentinel
	}

	return strconv.FormatFloat(v.V, 'f', 3, 64)
}
