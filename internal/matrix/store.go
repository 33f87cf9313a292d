package matrix

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// DefaultRetention is how many snapshots a Store keeps before pruning the
// oldest (spec §4.D "Retention: keep last K snapshots (default 10)").
const DefaultRetention = 10

// Store is the Matrix Store contract (spec §4.D): save marks the new snapshot
// active and any previous one inactive atomically; load_active returns the
// single active snapshot or none.
type Store interface {
	Save(ctx context.Context, m *Matrix) (snapshotID int64, err error)
	LoadActive(ctx context.Context) (*Snapshot, error)
	Close() error
}

// marshal/unmarshal use goccy/go-json, a drop-in faster encoding/json
// replacement, on the hot matrix (de)serialization path (spec §4.D, SPEC_FULL
// domain-stack wiring).
func marshal(m *Matrix) ([]byte, error) {
	return json.Marshal(m)
}

func unmarshal(data []byte) (*Matrix, error) {
	var m Matrix
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// PostgresStore implements Store against a Postgres table, following the
// teacher's internal/storage/postgres.go connection-string and logging
// conventions.
type PostgresStore struct {
	db        *sql.DB
	logger    *zap.Logger
	retention int
}

// PostgresConfig mirrors the teacher's PostgresConfig shape.
type PostgresConfig struct {
	Host      string
	Port      string
	User      string
	Password  string
	Database  string
	SSLMode   string
	Retention int
	Logger    *zap.Logger
}

// NewPostgresStore opens a Postgres-backed Store and pings the database; it
// does not create the snapshot table, which must already exist.
func NewPostgresStore(ctx context.Context, cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	cfg.Logger.Info("matrix-store-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStore{db: db, logger: cfg.Logger, retention: retention}, nil
}

// Save marks any previously-active snapshot inactive and inserts the new one
// active, inside a single transaction (spec §4.D atomicity requirement), then
// prunes snapshots beyond the retention window.
func (p *PostgresStore) Save(ctx context.Context, m *Matrix) (int64, error) {
	payload, err := marshal(m)
	if err != nil {
		return 0, fmt.Errorf("marshal matrix: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE matrix_snapshots SET is_active = false WHERE is_active = true`); err != nil {
		return 0, fmt.Errorf("deactivate previous snapshot: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO matrix_snapshots (payload, is_active, saved_at) VALUES ($1, true, $2) RETURNING id`,
		payload, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM matrix_snapshots
		WHERE id NOT IN (SELECT id FROM matrix_snapshots ORDER BY id DESC LIMIT $1)
	`, p.retention); err != nil {
		return 0, fmt.Errorf("prune old snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	SnapshotsSavedTotal.Inc()
	ActiveSnapshotID.Set(float64(id))
	p.logger.Info("matrix-snapshot-saved", zap.Int64("snapshot-id", id))
	return id, nil
}

// LoadActive returns the single active snapshot, or nil if none exists.
func (p *PostgresStore) LoadActive(ctx context.Context) (*Snapshot, error) {
	var id int64
	var payload []byte
	var savedAt time.Time

	row := p.db.QueryRowContext(ctx,
		`SELECT id, payload, saved_at FROM matrix_snapshots WHERE is_active = true LIMIT 1`)
	if err := row.Scan(&id, &payload, &savedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load active snapshot: %w", err)
	}

	m, err := unmarshal(payload)
	if err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %d: %w", id, err)
	}

	ActiveSnapshotAgeSeconds.Set(time.Since(savedAt).Seconds())
	return &Snapshot{ID: id, Matrix: m, IsActive: true, SavedAt: savedAt}, nil
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-matrix-store")
	return p.db.Close()
}

// FileStore implements Store against a directory holding one JSON file per
// snapshot plus an "active" pointer file, for local/backtest use without a
// database (spec §4.D "filesystem pair {active, archive}").
type FileStore struct {
	dir       string
	logger    *zap.Logger
	retention int
}

// NewFileStore creates a FileStore rooted at dir, creating it if absent.
func NewFileStore(dir string, logger *zap.Logger, retention int) (*FileStore, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create matrix store dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger, retention: retention}, nil
}

func (f *FileStore) snapshotPath(id int64) string {
	return filepath.Join(f.dir, fmt.Sprintf("snapshot-%d.json", id))
}

func (f *FileStore) activePath() string {
	return filepath.Join(f.dir, "active")
}

// Save writes a new snapshot file, atomically repoints the active pointer
// file, and prunes archived snapshots beyond retention.
func (f *FileStore) Save(ctx context.Context, m *Matrix) (int64, error) {
	id, err := f.nextID()
	if err != nil {
		return 0, err
	}

	payload, err := marshal(m)
	if err != nil {
		return 0, fmt.Errorf("marshal matrix: %w", err)
	}
	if err := os.WriteFile(f.snapshotPath(id), payload, 0o644); err != nil {
		return 0, fmt.Errorf("write snapshot %d: %w", id, err)
	}

	tmp := f.activePath() + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(id, 10)), 0o644); err != nil {
		return 0, fmt.Errorf("write active pointer: %w", err)
	}
	if err := os.Rename(tmp, f.activePath()); err != nil {
		return 0, fmt.Errorf("repoint active pointer: %w", err)
	}

	f.prune()

	SnapshotsSavedTotal.Inc()
	ActiveSnapshotID.Set(float64(id))
	f.logger.Info("matrix-snapshot-saved", zap.Int64("snapshot-id", id), zap.String("dir", f.dir))
	return id, nil
}

// LoadActive reads the active pointer file and its referenced snapshot.
func (f *FileStore) LoadActive(ctx context.Context) (*Snapshot, error) {
	idBytes, err := os.ReadFile(f.activePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read active pointer: %w", err)
	}

	id, err := strconv.ParseInt(strings.TrimSpace(string(idBytes)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse active pointer: %w", err)
	}

	info, err := os.Stat(f.snapshotPath(id))
	if err != nil {
		return nil, fmt.Errorf("stat snapshot %d: %w", id, err)
	}
	payload, err := os.ReadFile(f.snapshotPath(id))
	if err != nil {
		return nil, fmt.Errorf("read snapshot %d: %w", id, err)
	}

	m, err := unmarshal(payload)
	if err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %d: %w", id, err)
	}

	ActiveSnapshotAgeSeconds.Set(time.Since(info.ModTime()).Seconds())
	return &Snapshot{ID: id, Matrix: m, IsActive: true, SavedAt: info.ModTime()}, nil
}

// Close is a no-op for FileStore; it holds no persistent connection.
func (f *FileStore) Close() error { return nil }

func (f *FileStore) nextID() (int64, error) {
	ids, err := f.listIDs()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 1, nil
	}
	return ids[len(ids)-1] + 1, nil
}

func (f *FileStore) listIDs() ([]int64, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list snapshot dir: %w", err)
	}
	var ids []int64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "snapshot-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		idStr := strings.TrimSuffix(strings.TrimPrefix(name, "snapshot-"), ".json")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *FileStore) prune() {
	ids, err := f.listIDs()
	if err != nil {
		f.logger.Warn("matrix-store-prune-list-failed", zap.Error(err))
		return
	}
	if len(ids) <= f.retention {
		return
	}
	for _, id := range ids[:len(ids)-f.retention] {
		if err := os.Remove(f.snapshotPath(id)); err != nil && !os.IsNotExist(err) {
			f.logger.Warn("matrix-store-prune-failed", zap.Int64("snapshot-id", id), zap.Error(err))
		}
	}
}
