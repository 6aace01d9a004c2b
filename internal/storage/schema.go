package storage

import "github.com/afroash/holdtrack/internal/config"

// dialect carries the statements that differ between drivers
type dialect struct {
	name       string
	schema     string
	lockDevice string
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		api_key TEXT,
		created_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		created_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS holds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id TEXT NOT NULL,
		label TEXT NOT NULL,
		imei TEXT,
		start_at DATETIME NOT NULL,
		end_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_devices_account ON devices(account_id);
	CREATE INDEX IF NOT EXISTS idx_holds_device_start ON holds(device_id, start_at);
	CREATE INDEX IF NOT EXISTS idx_holds_label ON holds(label);
	CREATE UNIQUE INDEX IF NOT EXISTS uq_holds_active_device ON holds(device_id) WHERE end_at IS NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS uq_holds_active_label ON holds(label) WHERE end_at IS NULL;
`

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		api_key TEXT,
		created_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		created_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS holds (
		id BIGSERIAL PRIMARY KEY,
		device_id TEXT NOT NULL,
		label TEXT NOT NULL,
		imei TEXT,
		start_at TIMESTAMPTZ NOT NULL,
		end_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_devices_account ON devices(account_id);
	CREATE INDEX IF NOT EXISTS idx_holds_device_start ON holds(device_id, start_at);
	CREATE INDEX IF NOT EXISTS idx_holds_label ON holds(label);
	CREATE UNIQUE INDEX IF NOT EXISTS uq_holds_active_device ON holds(device_id) WHERE end_at IS NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS uq_holds_active_label ON holds(label) WHERE end_at IS NULL;
`

var (
	sqliteDialect = dialect{
		name:   config.DriverSQLite,
		schema: sqliteSchema,
	}
	postgresDialect = dialect{
		name:       config.DriverPostgres,
		schema:     postgresSchema,
		lockDevice: `SELECT id FROM devices WHERE id = ? FOR UPDATE`,
	}
)
