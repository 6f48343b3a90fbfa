package connection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/queryowl/queryowl/internal/models"
)

// PoolLimits carries the tunable pool bounds from configuration.
type PoolLimits struct {
	MaxConns int
	MinConns int
}

// Session is one live connection to a database, backed by a pgx pool so
// concurrent executes, introspection and a running export never contend for a
// single socket.
type Session struct {
	pool        *pgxpool.Pool
	conn        models.Connection
	connectedAt time.Time
}

// newSession dials the database described by conn and verifies it with a
// ping. The returned session owns the pool.
func newSession(ctx context.Context, conn models.Connection, secretText string, limits PoolLimits) (*Session, error) {
	poolConfig, err := pgxpool.ParseConfig(buildConnString(conn, secretText))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	maxConns := int32(limits.MaxConns)
	if maxConns < 1 {
		maxConns = 5
	}
	minConns := int32(limits.MinConns)
	if minConns < 0 {
		minConns = 1
	}
	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = minConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "queryowl"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, classifyDialError(err, conn.Host, conn.Port)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classifyDialError(err, conn.Host, conn.Port)
	}

	return &Session{
		pool:        pool,
		conn:        conn.Redacted(),
		connectedAt: time.Now(),
	}, nil
}

// DialDSN opens a session straight from a connection string, bypassing the
// stored-profile path. Integration tests use it; the application itself
// always dials through a profile.
func DialDSN(ctx context.Context, dsn string) (*Session, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "queryowl"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Session{pool: pool, connectedAt: time.Now()}, nil
}

// ID returns the stored profile id this session was dialed from.
func (s *Session) ID() string {
	return s.conn.ID
}

// Info returns the redacted profile behind the session.
func (s *Session) Info() models.Connection {
	return s.conn
}

// Pool exposes the underlying pgx pool.
func (s *Session) Pool() *pgxpool.Pool {
	return s.pool
}

// ConnectedAt reports when the session was established.
func (s *Session) ConnectedAt() time.Time {
	return s.connectedAt
}

// Ping verifies the session is still usable.
func (s *Session) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("connection pool not initialized")
	}
	return s.pool.Ping(ctx)
}

// Close releases the pool. Safe to call on a session that never dialed.
func (s *Session) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// buildConnString creates a keyword/value connection string.
func buildConnString(conn models.Connection, secretText string) string {
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s database=%s sslmode=%s connect_timeout=10",
		conn.Host,
		conn.Port,
		conn.Username,
		conn.Database,
		sslMode,
	)

	if secretText != "" {
		connStr += " password=" + quoteConnValue(secretText)
	}

	return connStr
}

// quoteConnValue single-quotes a keyword/value setting so passwords with
// spaces or quotes survive parsing.
func quoteConnValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
