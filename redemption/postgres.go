package redemption

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/magland/hchat/protocol"
	_ "github.com/lib/pq"
)

// PostgresGuard records redemptions in a PostgreSQL table. An expired row
// can be claimed again; Cleanup deletes expired rows.
type PostgresGuard struct {
	db    *sql.DB
	clock clock.Clock
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// OpenPostgres opens and pings the database described by config.
func OpenPostgres(config *PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// NewPostgresGuard creates the redemption table if needed and returns a
// guard on db. A nil clock means the wall clock.
func NewPostgresGuard(ctx context.Context, db *sql.DB, c clock.Clock) (*PostgresGuard, error) {
	if c == nil {
		c = clock.New()
	}
	g := &PostgresGuard{db: db, clock: c}
	if err := g.migrate(ctx); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return g, nil
}

const redemptionSchema = `
	CREATE TABLE IF NOT EXISTS redeemed_tokens (
		redemption_key VARCHAR(64) PRIMARY KEY,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_redeemed_expires ON redeemed_tokens(expires_at);
	`

func (g *PostgresGuard) migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := g.db.ExecContext(ctx, redemptionSchema)
	return err
}

const claimQuery = `
	INSERT INTO redeemed_tokens (redemption_key, expires_at)
	VALUES ($1, $2)
	ON CONFLICT (redemption_key) DO UPDATE SET
		expires_at = EXCLUDED.expires_at
	WHERE redeemed_tokens.expires_at <= $3
	`

// Claim implements protocol.RedemptionGuard. The row count tells whether
// this call inserted or revived the key.
func (g *PostgresGuard) Claim(ctx context.Context, key string, ttl time.Duration) error {
	now := g.clock.Now()
	res, err := g.db.ExecContext(ctx, claimQuery, key, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("claiming redemption: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claiming redemption: %w", err)
	}
	if n == 0 {
		return protocol.ErrAlreadyRedeemed
	}
	return nil
}

// Cleanup deletes expired rows and returns how many were removed.
func (g *PostgresGuard) Cleanup(ctx context.Context) (int64, error) {
	res, err := g.db.ExecContext(ctx, `DELETE FROM redeemed_tokens WHERE expires_at <= $1`, g.clock.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (g *PostgresGuard) Close() error {
	return g.db.Close()
}
