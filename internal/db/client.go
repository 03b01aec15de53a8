// Package db provides the SurrealDB connection behind the remote mirror
// of per-user journal state.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// WebSocket upgrades fail when a TLS endpoint negotiates HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Config holds SurrealDB connection settings.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"
}

// Reconnect settings for the mirror socket.
const (
	dialTimeout       = 5 * time.Second
	reconnectInitial  = time.Second
	reconnectMax      = 30 * time.Second
	reconnectAttempts = 10
)

// Client is a connected mirror. Every query updates its Health.
type Client struct {
	conn *rews.Connection[*gorillaws.Connection]
	db   *surrealdb.DB
	cfg  Config
	log  *slog.Logger

	health healthTracker
}

// Connect dials cfg.URL, signs in, selects the namespace and database,
// and makes sure the kv table exists. The socket reconnects on its own
// with exponential backoff.
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{cfg: cfg, log: log.With("component", "mirror")}
	c.health.set(StateConnecting, nil)

	sdkLog := logger.New(c.log.Handler())
	codec := surrealcbor.New()
	// gorillaws appends /rpc itself.
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	c.conn = rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLog,
			}), nil
		},
		dialTimeout,
		codec,
		sdkLog,
	)
	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = reconnectInitial
	retryer.MaxDelay = reconnectMax
	retryer.Multiplier = 2.0
	retryer.MaxRetries = reconnectAttempts
	c.conn.Retryer = retryer

	c.log.Info("connecting", "url", cfg.URL, "namespace", cfg.Namespace, "database", cfg.Database)
	if err := c.conn.Connect(ctx); err != nil {
		c.health.set(StateDown, err)
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := c.open(ctx); err != nil {
		c.health.set(StateDown, err)
		_ = c.conn.Close(ctx)
		return nil, err
	}

	c.health.set(StateUp, nil)
	c.log.Info("mirror ready")
	return c, nil
}

// open authenticates, selects the database and applies SchemaSQL.
func (c *Client) open(ctx context.Context) error {
	db, err := surrealdb.FromConnection(ctx, c.conn)
	if err != nil {
		return fmt.Errorf("from connection: %w", err)
	}

	auth := surrealdb.Auth{Username: c.cfg.Username, Password: c.cfg.Password}
	if c.cfg.AuthLevel == "database" {
		auth.Namespace = c.cfg.Namespace
		auth.Database = c.cfg.Database
	}
	if _, err := db.SignIn(ctx, auth); err != nil {
		return fmt.Errorf("signin as %s: %w", c.cfg.Username, err)
	}
	if err := db.Use(ctx, c.cfg.Namespace, c.cfg.Database); err != nil {
		return fmt.Errorf("use %s/%s: %w", c.cfg.Namespace, c.cfg.Database, err)
	}
	if _, err := surrealdb.Query[any](ctx, db, SchemaSQL, nil); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	c.db = db
	return nil
}

// Close shuts the socket and stops reconnecting.
func (c *Client) Close(ctx context.Context) error {
	c.log.Info("closing mirror connection")
	c.health.set(StateClosed, nil)
	return c.conn.Close(ctx)
}

// Ping runs a trivial query to refresh Health.
func (c *Client) Ping(ctx context.Context) error {
	_, err := surrealdb.Query[any](ctx, c.db, "RETURN 1", nil)
	c.observe(err)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WipeData deletes every mirrored value. Tests only.
func (c *Client) WipeData(ctx context.Context) error {
	_, err := surrealdb.Query[any](ctx, c.db, "DELETE kv", nil)
	c.observe(err)
	if err != nil {
		return fmt.Errorf("delete kv: %w", err)
	}
	return nil
}
