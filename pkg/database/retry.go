package database

import (
	"context"
	"database/sql/driver"
	"math/rand"
	"strings"
	"time"
)

// busyRetryConnector wraps a driver.Connector and retries operations that fail
// with SQLITE_BUSY or SQLITE_LOCKED. The busy_timeout pragma handles most
// contention; this catches the cases where SQLite gives up anyway, such as a
// write colliding with a long-running transaction from another sync request.
type busyRetryConnector struct {
	connector  driver.Connector
	maxRetries int
}

func newBusyRetryConnector(connector driver.Connector, maxRetries int) *busyRetryConnector {
	return &busyRetryConnector{connector: connector, maxRetries: maxRetries}
}

func (rc *busyRetryConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := rc.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &busyRetryConn{conn: conn, maxRetries: rc.maxRetries}, nil
}

func (rc *busyRetryConnector) Driver() driver.Driver {
	return rc.connector.Driver()
}

// isBusyError matches the busy/locked error shapes of the sqliteshim drivers.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "(5)") ||
		strings.Contains(msg, "(6)")
}

func retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var err error
	baseDelay := 50 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if !isBusyError(err) || attempt == maxRetries {
			return err
		}

		// Exponential backoff with up to 25% jitter, capped at 2s.
		delay := baseDelay * time.Duration(1<<attempt)
		delay += time.Duration(rand.Int63n(int64(delay / 4)))
		if delay > 2*time.Second {
			delay = 2 * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return err
}

// busyRetryConn wraps a driver.Conn and adds the retry behavior to the
// operations where SQLite reports lock contention.
type busyRetryConn struct {
	conn       driver.Conn
	maxRetries int
}

// Prepare implements driver.Conn.
func (c *busyRetryConn) Prepare(query string) (driver.Stmt, error) {
	return c.conn.Prepare(query)
}

// Close implements driver.Conn.
func (c *busyRetryConn) Close() error {
	return c.conn.Close()
}

// Begin implements driver.Conn.
func (c *busyRetryConn) Begin() (driver.Tx, error) {
	var tx driver.Tx
	err := retryWithBackoff(context.Background(), c.maxRetries, func() error {
		var innerErr error
		tx, innerErr = c.conn.Begin() //nolint:staticcheck // deprecated but required for interface
		return innerErr
	})
	return tx, err
}

// BeginTx implements driver.ConnBeginTx.
func (c *busyRetryConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	connBeginTx, ok := c.conn.(driver.ConnBeginTx)
	if !ok {
		return c.Begin()
	}
	var tx driver.Tx
	err := retryWithBackoff(ctx, c.maxRetries, func() error {
		var innerErr error
		tx, innerErr = connBeginTx.BeginTx(ctx, opts)
		return innerErr
	})
	return tx, err
}

// PrepareContext implements driver.ConnPrepareContext.
func (c *busyRetryConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if connPrepareContext, ok := c.conn.(driver.ConnPrepareContext); ok {
		return connPrepareContext.PrepareContext(ctx, query)
	}
	return c.Prepare(query)
}

// ExecContext implements driver.ExecerContext.
func (c *busyRetryConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	execerContext, ok := c.conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	var result driver.Result
	err := retryWithBackoff(ctx, c.maxRetries, func() error {
		var innerErr error
		result, innerErr = execerContext.ExecContext(ctx, query, args)
		return innerErr
	})
	return result, err
}

// QueryContext implements driver.QueryerContext.
func (c *busyRetryConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	queryerContext, ok := c.conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	var rows driver.Rows
	err := retryWithBackoff(ctx, c.maxRetries, func() error {
		var innerErr error
		rows, innerErr = queryerContext.QueryContext(ctx, query, args)
		return innerErr
	})
	return rows, err
}

// Ping implements driver.Pinger.
func (c *busyRetryConn) Ping(ctx context.Context) error {
	if pinger, ok := c.conn.(driver.Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// ResetSession implements driver.SessionResetter.
func (c *busyRetryConn) ResetSession(ctx context.Context) error {
	if resetter, ok := c.conn.(driver.SessionResetter); ok {
		return resetter.ResetSession(ctx)
	}
	return nil
}

// IsValid implements driver.Validator.
func (c *busyRetryConn) IsValid() bool {
	if validator, ok := c.conn.(driver.Validator); ok {
		return validator.IsValid()
	}
	return true
}
