package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-sqlite3"

	"media-gallery/internal/errs"
	"media-gallery/internal/logging"
	"media-gallery/internal/memory"
	"media-gallery/internal/metrics"
)

// driverName is the go-sqlite3 driver registered with the gallery's
// connect hook (NATCASE collation plus per-connection pragmas).
const driverName = "sqlite3_gallery"

const (
	minBusyTimeout  = 10 * time.Second
	maxBusyTimeout  = 60 * time.Second
	minQueryTimeout = 15 * time.Second
	maxQueryTimeout = 60 * time.Second
)

// Runtime tunables. The connect hook reads these when a pooled connection
// is (re)created, so changes apply to new connections; the query timeout
// applies to the next query immediately.
var (
	busyTimeoutMs  atomic.Int64
	queryTimeoutMs atomic.Int64
	connMmapBytes  atomic.Int64
	connCacheKiB   atomic.Int64
)

func init() {
	busyTimeoutMs.Store(10_000)
	queryTimeoutMs.Store(30_000)
	connMmapBytes.Store(256 << 20)
	connCacheKiB.Store(8 << 10)
}

// SetBusyTimeout adjusts how long SQLite blocks on a locked database
// before returning SQLITE_BUSY. The value is clamped to [10s, 60s];
// the applied value is returned.
func SetBusyTimeout(d time.Duration) time.Duration {
	d = clampDuration(d, minBusyTimeout, maxBusyTimeout)
	busyTimeoutMs.Store(d.Milliseconds())
	return d
}

// BusyTimeout returns the current busy timeout.
func BusyTimeout() time.Duration {
	return time.Duration(busyTimeoutMs.Load()) * time.Millisecond
}

// SetQueryTimeout adjusts the per-query context deadline. The value is
// clamped to [15s, 60s]; the applied value is returned.
func SetQueryTimeout(d time.Duration) time.Duration {
	d = clampDuration(d, minQueryTimeout, maxQueryTimeout)
	queryTimeoutMs.Store(d.Milliseconds())
	return d
}

// QueryTimeout returns the current per-query timeout.
func QueryTimeout() time.Duration {
	return time.Duration(queryTimeoutMs.Load()) * time.Millisecond
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

var registerDriverOnce sync.Once

// registerDriver installs the shared driver. The hook registers the
// NATCASE collation and applies the pragmas that cannot be carried in the
// connection string because they are per-connection and runtime-tunable.
func registerDriver() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterCollation("NATCASE", natcaseCompare()); err != nil {
				return fmt.Errorf("register NATCASE collation: %w", err)
			}
			pragmas := fmt.Sprintf(
				"PRAGMA mmap_size = %d; PRAGMA cache_size = -%d; PRAGMA busy_timeout = %d;",
				connMmapBytes.Load(), connCacheKiB.Load(), busyTimeoutMs.Load(),
			)
			if _, err := conn.Exec(pragmas, nil); err != nil {
				return fmt.Errorf("apply connection pragmas: %w", err)
			}
			return nil
		},
	})
}

// DB wraps one SQLite database file. All access goes through Run, Get,
// All, BeginBatch, or RunPreparedBatch so that every query carries the
// shared timeout and records metrics under the database's name.
type DB struct {
	sql  *sql.DB
	name string
	path string
}

// Name returns the short database name (gallery, settings, history, index).
func (d *DB) Name() string { return d.name }

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Handle exposes the raw pool for the rare caller that needs it (tests,
// prepared statements inside a batch).
func (d *DB) Handle() *sql.DB { return d.sql }

func openDB(ctx context.Context, name, path string, maxConns int) (*DB, error) {
	registerDriverOnce.Do(registerDriver)

	// _txlock=immediate makes BeginTx take the write lock up front so
	// concurrent writers queue on busy_timeout instead of failing at
	// first write.
	connStr := fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_synchronous=NORMAL&_temp_store=MEMORY&_foreign_keys=on&_txlock=immediate",
		path,
	)

	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close %s database after ping failure: %v", name, closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxLifetime(time.Hour)

	return &DB{sql: db, name: name, path: path}, nil
}

func (d *DB) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, QueryTimeout())
}

// record counts a finished operation. A missing row is not an error from
// the metrics point of view.
func (d *DB) record(operation string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(d.name, operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(d.name, operation).Observe(time.Since(start).Seconds())
}

// wrapErr classifies driver errors so callers can branch on kind.
// sql.ErrNoRows passes through untouched.
func (d *DB) wrapErr(err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		metrics.DBQueryTimeouts.WithLabelValues(d.name).Inc()
		return errs.E(errs.SQLiteTimeout, fmt.Sprintf("query on %s database timed out", d.name), err)
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return errs.E(errs.SQLiteBusy, fmt.Sprintf("%s database is busy", d.name), err)
	}
	return err
}

// busyRetryDelays is the ladder applied when a write hits SQLITE_BUSY
// even after the driver-level busy timeout.
var busyRetryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}

func (d *DB) retryBusy(ctx context.Context, fn func() error) error {
	err := fn()
	for _, delay := range busyRetryDelays {
		if !isBusy(err) {
			return err
		}
		metrics.DBBusyRetries.WithLabelValues(d.name).Inc()
		logging.Warn("Database %s is busy, retrying in %s", d.name, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return err
		}
		err = fn()
	}
	return err
}

// Run executes a statement, retrying through the busy ladder.
func (d *DB) Run(ctx context.Context, operation, query string, args ...interface{}) (sql.Result, error) {
	var res sql.Result
	err := d.retryBusy(ctx, func() error {
		qctx, cancel := d.queryCtx(ctx)
		defer cancel()
		start := time.Now()
		var execErr error
		res, execErr = d.sql.ExecContext(qctx, query, args...)
		d.record(operation, start, execErr)
		return d.wrapErr(execErr)
	})
	return res, err
}

// Row defers error classification until Scan so Get can be chained the
// way sql.QueryRow is.
type Row struct {
	row    *sql.Row
	d      *DB
	op     string
	start  time.Time
	cancel context.CancelFunc
}

// Get runs a single-row query. The returned Row must be Scanned.
func (d *DB) Get(ctx context.Context, operation, query string, args ...interface{}) *Row {
	qctx, cancel := d.queryCtx(ctx)
	return &Row{
		row:    d.sql.QueryRowContext(qctx, query, args...),
		d:      d,
		op:     operation,
		start:  time.Now(),
		cancel: cancel,
	}
}

// Scan copies the row into dest, releasing the query context.
func (r *Row) Scan(dest ...interface{}) error {
	err := r.row.Scan(dest...)
	r.cancel()
	r.d.record(r.op, r.start, err)
	return r.d.wrapErr(err)
}

// All runs a multi-row query and invokes scan once per row. The rows
// handle is managed here so callers cannot leak it.
func (d *DB) All(ctx context.Context, operation, query string, scan func(*sql.Rows) error, args ...interface{}) error {
	qctx, cancel := d.queryCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := d.sql.QueryContext(qctx, query, args...)
	if err != nil {
		d.record(operation, start, err)
		return d.wrapErr(err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Debug("closing rows for %s.%s: %v", d.name, operation, closeErr)
		}
	}()

	for rows.Next() {
		if err := scan(rows); err != nil {
			d.record(operation, start, err)
			return err
		}
	}
	err = rows.Err()
	d.record(operation, start, err)
	return d.wrapErr(err)
}

// Batch is an open write transaction. Domain helpers take its Tx; End
// commits or rolls back and records the transaction duration.
type Batch struct {
	Tx    *sql.Tx
	d     *DB
	start time.Time
}

// BeginBatch starts a write transaction. The connection string's
// _txlock=immediate makes this a BEGIN IMMEDIATE, serializing against
// other writers up front. The caller must call End exactly once.
func (d *DB) BeginBatch(ctx context.Context) (*Batch, error) {
	var b *Batch
	err := d.retryBusy(ctx, func() error {
		tx, err := d.sql.BeginTx(ctx, nil)
		if err != nil {
			return d.wrapErr(err)
		}
		b = &Batch{Tx: tx, d: d, start: time.Now()}
		return nil
	})
	return b, err
}

// End commits the batch when err is nil, otherwise rolls it back and
// returns the original error.
func (b *Batch) End(err error) error {
	if err != nil {
		b.d.record("tx_rollback", b.start, err)
		if rbErr := b.Tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}
	commitErr := b.Tx.Commit()
	b.d.record("tx_commit", b.start, commitErr)
	return b.d.wrapErr(commitErr)
}

// Options tunes Open. Zero values select the defaults: timeouts from the
// package defaults, mmap/cache from the host memory tier.
type Options struct {
	BusyTimeout  time.Duration
	QueryTimeout time.Duration
	MmapBytes    int64
	CacheKiB     int64
}

// Manager owns the four gallery stores.
type Manager struct {
	Gallery  *DB
	Settings *DB
	History  *DB
	Index    *DB

	stopMaint chan struct{}
	closeOnce sync.Once

	statsMu   sync.RWMutex
	lastStats metrics.Stats
}

// Open opens (creating as needed) the four databases under dataDir and
// ensures their schemas. The parent directory must already exist and be
// writable; use startup.LoadConfig to validate it first.
func Open(ctx context.Context, dataDir string, opts Options) (*Manager, error) {
	if opts.BusyTimeout > 0 {
		SetBusyTimeout(opts.BusyTimeout)
	}
	if opts.QueryTimeout > 0 {
		SetQueryTimeout(opts.QueryTimeout)
	}

	mmap, cache := opts.MmapBytes, opts.CacheKiB
	if mmap <= 0 || cache <= 0 {
		tier := memory.TierFor(memory.Total())
		if mmap <= 0 {
			mmap = tier.MmapBytes
		}
		if cache <= 0 {
			cache = tier.CacheKiB
		}
	}
	connMmapBytes.Store(mmap)
	connCacheKiB.Store(cache)

	logging.Info("SQLite tuning: mmap_size=%s cache_size=%s busy_timeout=%s query_timeout=%s",
		memory.FormatBytes(mmap), memory.FormatBytes(cache*1024), BusyTimeout(), QueryTimeout())

	if err := diagnoseDataDir(dataDir); err != nil {
		logging.Warn("Data directory diagnostics: %v", err)
	}

	m := &Manager{stopMaint: make(chan struct{})}
	stores := []struct {
		name     string
		file     string
		maxConns int
		target   **DB
	}{
		{"gallery", "gallery.db", 25, &m.Gallery},
		{"settings", "settings.db", 4, &m.Settings},
		{"history", "history.db", 8, &m.History},
		{"index", "index.db", 4, &m.Index},
	}
	for _, s := range stores {
		db, err := openDB(ctx, s.name, filepath.Join(dataDir, s.file), s.maxConns)
		if err != nil {
			m.closeAll()
			return nil, fmt.Errorf("open %s database: %w", s.name, err)
		}
		*s.target = db
	}

	if err := m.EnsureCoreTables(ctx); err != nil {
		m.closeAll()
		return nil, fmt.Errorf("ensure core tables: %w", err)
	}
	if err := m.Migrate(ctx); err != nil {
		m.closeAll()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	go m.maintenanceLoop()

	logging.Info("Databases initialized under %s", dataDir)
	return m, nil
}

// all returns the opened stores, skipping any nil from a failed Open.
func (m *Manager) all() []*DB {
	var out []*DB
	for _, d := range []*DB{m.Gallery, m.Settings, m.History, m.Index} {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// Close runs a final PRAGMA optimize on each store and closes the pools.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stopMaint)
		for _, d := range m.all() {
			if _, optErr := d.sql.Exec("PRAGMA optimize"); optErr != nil {
				logging.Debug("PRAGMA optimize on %s: %v", d.name, optErr)
			}
		}
		err = m.closeAll()
	})
	return err
}

func (m *Manager) closeAll() error {
	var erris []error
	for _, d := range m.all() {
		if closeErr := d.sql.Close(); closeErr != nil {
			erris = append(erris, fmt.Errorf("close %s: %w", d.name, closeErr))
		}
	}
	return errors.Join(erris...)
}

// maintenanceLoop refreshes size gauges and periodically re-runs the
// query planner's optimize pass.
func (m *Manager) maintenanceLoop() {
	sizeTicker := time.NewTicker(time.Minute)
	optimizeTicker := time.NewTicker(time.Hour)
	defer sizeTicker.Stop()
	defer optimizeTicker.Stop()

	m.updateSizeMetrics()

	for {
		select {
		case <-sizeTicker.C:
			m.updateSizeMetrics()
		case <-optimizeTicker.C:
			for _, d := range m.all() {
				if _, err := d.sql.Exec("PRAGMA optimize"); err != nil {
					logging.Debug("periodic PRAGMA optimize on %s: %v", d.name, err)
				}
			}
		case <-m.stopMaint:
			return
		}
	}
}

func (m *Manager) updateSizeMetrics() {
	for _, d := range m.all() {
		for suffix, label := range map[string]string{"": "main", "-wal": "wal", "-shm": "shm"} {
			if info, err := os.Stat(d.path + suffix); err == nil {
				metrics.DBSizeBytes.WithLabelValues(d.name, label).Set(float64(info.Size()))
			}
		}
	}
}

// GetStats implements metrics.StatsProvider. It queries live counts with
// a short deadline and falls back to the last good snapshot on error.
func (m *Manager) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var stats metrics.Stats
	err := m.Gallery.Get(ctx, "library_stats", `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'photo' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'video' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'album' THEN 1 ELSE 0 END), 0)
		FROM items`,
	).Scan(&stats.TotalPhotos, &stats.TotalVideos, &stats.TotalAlbums)
	if err == nil {
		err = m.Gallery.All(ctx, "thumb_stats",
			`SELECT status, COUNT(*) FROM thumb_status GROUP BY status`,
			func(rows *sql.Rows) error {
				var status string
				var n int
				if err := rows.Scan(&status, &n); err != nil {
					return err
				}
				switch status {
				case ThumbExists:
					stats.ThumbsDone = n
				case ThumbFailed:
					stats.ThumbsFailed = n
				default:
					stats.ThumbsPending += n
				}
				return nil
			})
	}
	if err != nil {
		logging.Debug("library stats query failed, serving cached values: %v", err)
		m.statsMu.RLock()
		defer m.statsMu.RUnlock()
		return m.lastStats
	}

	m.statsMu.Lock()
	m.lastStats = stats
	m.statsMu.Unlock()
	return stats
}

// diagnoseDataDir checks directory and database file permissions, fixing
// read-only WAL/SHM sidecars where possible. Problems are reported, not
// fatal; SQLite will produce clearer errors later if they persist.
func diagnoseDataDir(dataDir string) error {
	dirInfo, err := os.Stat(dataDir)
	if err != nil {
		return fmt.Errorf("cannot stat data directory: %w", err)
	}
	logging.Debug("Data directory: %s (mode: %v)", dataDir, dirInfo.Mode())

	testFile := filepath.Join(dataDir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("data directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, file := range []string{"gallery.db", "settings.db", "history.db", "index.db"} {
		dbPath := filepath.Join(dataDir, file)
		if info, err := os.Stat(dbPath); err == nil {
			if info.Mode().Perm()&0o200 == 0 {
				logging.Warn("Database file is read-only: %s (mode: %v)", dbPath, info.Mode())
			}
		}
		for _, suffix := range []string{"-wal", "-shm"} {
			sidecar := dbPath + suffix
			info, err := os.Stat(sidecar)
			if err != nil {
				continue
			}
			if info.Mode().Perm()&0o200 == 0 {
				logging.Warn("Sidecar is read-only and will break writes: %s (mode: %v)", sidecar, info.Mode())
				if chmodErr := os.Chmod(sidecar, 0o600); chmodErr != nil {
					logging.Error("Failed to fix permissions on %s: %v", sidecar, chmodErr)
				} else {
					logging.Info("Fixed permissions on %s", sidecar)
				}
			}
		}
	}
	return nil
}

func isBusy(err error) bool {
	return err != nil && errs.Is(err, errs.SQLiteBusy)
}
