package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/afroash/holdtrack/internal/config"
	"github.com/afroash/holdtrack/internal/models"
)

// Compile-time interface check
var _ Store = (*SQLStore)(nil)

// SQLStore persists accounts, devices and holds through sqlx on SQLite or PostgreSQL
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	logger  zerolog.Logger
	*sqlRepo
}

// Open connects to the configured database and migrates the schema
func Open(ctx context.Context, cfg config.DatabaseSettings, logger zerolog.Logger) (*SQLStore, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return NewSQLiteStore(ctx, cfg.DSN, logger)
	case config.DriverPostgres:
		return NewPostgresStore(ctx, cfg.DSN, cfg.MaxOpenConns, logger)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
}

// NewSQLiteStore opens a SQLite database at path
func NewSQLiteStore(ctx context.Context, path string, logger zerolog.Logger) (*SQLStore, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Open(config.DriverSQLite, sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	// Single writer connection serialises every transaction
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := newSQLStore(db, sqliteDialect, logger)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info().Str("path", path).Msg("SQLite store initialized")
	return store, nil
}

// NewPostgresStore connects to PostgreSQL with the given DSN
func NewPostgresStore(ctx context.Context, dsn string, maxOpenConns int, logger zerolog.Logger) (*SQLStore, error) {
	db, err := sqlx.ConnectContext(ctx, config.DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to PostgreSQL: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}

	store := newSQLStore(db, postgresDialect, logger)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info().Msg("PostgreSQL store initialized")
	return store, nil
}

// NewStoreWithDB wraps an existing connection without migrating it
func NewStoreWithDB(db *sql.DB, driver string, logger zerolog.Logger) (*SQLStore, error) {
	switch driver {
	case config.DriverSQLite:
		return newSQLStore(sqlx.NewDb(db, driver), sqliteDialect, logger), nil
	case config.DriverPostgres:
		return newSQLStore(sqlx.NewDb(db, driver), postgresDialect, logger), nil
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

func newSQLStore(db *sqlx.DB, d dialect, logger zerolog.Logger) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: d,
		logger:  logger,
		sqlRepo: &sqlRepo{q: db},
	}
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate&_busy_timeout=5000"
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate creates the database schema if it doesn't exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.logger.Debug().Str("driver", s.dialect.name).Msg("Database schema migrated")
	return nil
}

// WithinDevice runs fn in one transaction. On PostgreSQL the device row is
// locked first; on SQLite the immediate transaction holds the write lock.
func (s *SQLStore) WithinDevice(ctx context.Context, deviceID string, fn func(repo Repository) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if s.dialect.lockDevice != "" {
		var locked string
		err := tx.GetContext(ctx, &locked, tx.Rebind(s.dialect.lockDevice), deviceID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to lock device %s: %w", deviceID, err)
		}
	}

	if err := fn(&sqlRepo{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("commit transaction", err)
	}
	return nil
}

// DeleteOrphanHolds removes holds whose device no longer exists
func (s *SQLStore) DeleteOrphanHolds(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM holds
		WHERE device_id NOT IN (SELECT id FROM devices)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan holds: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Stats returns row counts
func (s *SQLStore) Stats(ctx context.Context) (*StorageStats, error) {
	var stats StorageStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			(SELECT COUNT(*) FROM accounts) AS accounts,
			(SELECT COUNT(*) FROM devices) AS devices,
			(SELECT COUNT(*) FROM holds) AS holds,
			(SELECT COUNT(*) FROM holds WHERE end_at IS NULL) AS active_holds
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage stats: %w", err)
	}
	return &stats, nil
}

// sqlRepo implements Repository on either the pool or a transaction
type sqlRepo struct {
	q sqlx.ExtContext
}

const holdColumns = `id, device_id, label, imei, start_at, end_at`

// CreateAccount inserts an account
func (r *sqlRepo) CreateAccount(ctx context.Context, id string, apiKey *string, createdAt *time.Time) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		INSERT INTO accounts (id, api_key, created_at)
		VALUES (?, ?, ?)
	`), id, apiKey, utcPtr(createdAt))
	if err != nil {
		return wrapErr("insert account", err)
	}
	return nil
}

// FindAccount returns the account or nil
func (r *sqlRepo) FindAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := sqlx.GetContext(ctx, r.q, &account, r.q.Rebind(`
		SELECT id, api_key, created_at FROM accounts WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return &account, nil
}

// DeleteAccount removes an account
func (r *sqlRepo) DeleteAccount(ctx context.Context, id string) error {
	return r.deleteOne(ctx, "account", `DELETE FROM accounts WHERE id = ?`, id)
}

// CreateDevice inserts a device
func (r *sqlRepo) CreateDevice(ctx context.Context, id, accountID string, createdAt *time.Time) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
		INSERT INTO devices (id, account_id, created_at)
		VALUES (?, ?, ?)
	`), id, accountID, utcPtr(createdAt))
	if err != nil {
		return wrapErr("insert device", err)
	}
	return nil
}

// FindDevice returns the device or nil
func (r *sqlRepo) FindDevice(ctx context.Context, id string) (*models.Device, error) {
	var device models.Device
	err := sqlx.GetContext(ctx, r.q, &device, r.q.Rebind(`
		SELECT id, account_id, created_at FROM devices WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query device: %w", err)
	}
	return &device, nil
}

// FindDevicesByAccount lists an account's devices ordered by id
func (r *sqlRepo) FindDevicesByAccount(ctx context.Context, accountID string) ([]*models.Device, error) {
	devices := []*models.Device{}
	err := sqlx.SelectContext(ctx, r.q, &devices, r.q.Rebind(`
		SELECT id, account_id, created_at FROM devices
		WHERE account_id = ?
		ORDER BY id
	`), accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	return devices, nil
}

// DeleteDevice removes a device. Its holds are left in place.
func (r *sqlRepo) DeleteDevice(ctx context.Context, id string) error {
	return r.deleteOne(ctx, "device", `DELETE FROM devices WHERE id = ?`, id)
}

// CreateHold inserts a hold and returns its id
func (r *sqlRepo) CreateHold(ctx context.Context, hold *models.Hold) (int64, error) {
	var id int64
	err := r.q.QueryRowxContext(ctx, r.q.Rebind(`
		INSERT INTO holds (device_id, label, imei, start_at, end_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`), hold.DeviceID, hold.Label, hold.IMEI, hold.Start.UTC(), utcPtr(hold.End)).Scan(&id)
	if err != nil {
		return 0, wrapErr("insert hold", err)
	}
	return id, nil
}

// FindHold returns the hold or nil
func (r *sqlRepo) FindHold(ctx context.Context, id int64) (*models.Hold, error) {
	var hold models.Hold
	err := sqlx.GetContext(ctx, r.q, &hold, r.q.Rebind(`
		SELECT `+holdColumns+` FROM holds WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query hold: %w", err)
	}
	normalizeHold(&hold)
	return &hold, nil
}

// FindHoldsByDevice lists a device's holds ordered by start
func (r *sqlRepo) FindHoldsByDevice(ctx context.Context, deviceID string) ([]*models.Hold, error) {
	return r.selectHolds(ctx, `
		SELECT `+holdColumns+` FROM holds
		WHERE device_id = ?
		ORDER BY start_at, id
	`, deviceID)
}

// FindHoldsByLabel lists every hold referencing label across devices
func (r *sqlRepo) FindHoldsByLabel(ctx context.Context, label string) ([]*models.Hold, error) {
	return r.selectHolds(ctx, `
		SELECT `+holdColumns+` FROM holds
		WHERE label = ?
		ORDER BY start_at, id
	`, label)
}

// SetHoldEnd closes a hold at end
func (r *sqlRepo) SetHoldEnd(ctx context.Context, id int64, end time.Time) error {
	return r.execOne(ctx, "set hold end", `UPDATE holds SET end_at = ? WHERE id = ?`, end.UTC(), id)
}

// UpdateHold writes whichever of start and end is non-nil
func (r *sqlRepo) UpdateHold(ctx context.Context, id int64, start, end *time.Time) error {
	var sets []string
	var args []interface{}
	if start != nil {
		sets = append(sets, "start_at = ?")
		args = append(args, start.UTC())
	}
	if end != nil {
		sets = append(sets, "end_at = ?")
		args = append(args, end.UTC())
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := `UPDATE holds SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	return r.execOne(ctx, "update hold", query, args...)
}

// DeleteHold removes a hold
func (r *sqlRepo) DeleteHold(ctx context.Context, id int64) error {
	return r.deleteOne(ctx, "hold", `DELETE FROM holds WHERE id = ?`, id)
}

func (r *sqlRepo) selectHolds(ctx context.Context, query string, args ...interface{}) ([]*models.Hold, error) {
	holds := []*models.Hold{}
	if err := sqlx.SelectContext(ctx, r.q, &holds, r.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query holds: %w", err)
	}
	for _, h := range holds {
		normalizeHold(h)
	}
	return holds, nil
}

func (r *sqlRepo) deleteOne(ctx context.Context, entity, query string, args ...interface{}) error {
	return r.execOne(ctx, "delete "+entity, query, args...)
}

func (r *sqlRepo) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		return wrapErr(op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// wrapErr translates unique violations from either driver into ErrDuplicate
func wrapErr(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func normalizeHold(h *models.Hold) {
	h.Start = h.Start.UTC()
	h.End = utcPtr(h.End)
}
