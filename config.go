package dbx

import "time"

// Config carries the two independent option groups a driver adapter needs to
// build a pool: how to reach the database and how to size the pool. The core
// never interprets either group; both pass through to the adapter verbatim.
type Config struct {
	Conn ConnConfig
	Pool PoolConfig
}

// ConnConfig describes one database endpoint. Params holds driver-specific
// settings (sslmode, search_path, application_name, ...) forwarded to the
// driver untouched.
type ConnConfig struct {
	Host     string
	Port     uint16
	Database string
	User     string
	Password string
	Params   map[string]string
}

// PoolConfig bounds the adapter's connection pool. Zero values mean "use the
// driver's default".
type PoolConfig struct {
	// MaxConns caps the number of concurrently borrowed connections.
	MaxConns int32
	// AcquireTimeout bounds how long Acquire waits for a free connection.
	AcquireTimeout time.Duration
	// MaxConnIdleTime is how long a connection may sit idle before the pool
	// discards it.
	MaxConnIdleTime time.Duration
}
