package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"media-converter/internal/naming"
)

const counterKey = "file_counter"

// GetMetadata retrieves a metadata value by key.
// Returns sql.ErrNoRows if the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err := d.db.QueryRowContext(ctx, "SELECT COALESCE(value, '') FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return setMetadata(ctx, d.db, key, value)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func setMetadata(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func parseCounter(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return naming.MinCounter
	}
	return naming.Normalize(n)
}

// Advance implements naming.CounterStore. The read and the write of the
// successor happen in one transaction under the write lock.
func (d *Database) Advance(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("counter_advance", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, txStart, err := d.beginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", naming.ErrCounterPersist, err)
	}

	var raw string
	err = tx.QueryRowContext(ctx, "SELECT COALESCE(value, '') FROM metadata WHERE key = ?", counterKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		raw, err = "", nil
	}

	current := parseCounter(raw)
	if err == nil {
		err = setMetadata(ctx, tx, counterKey, strconv.Itoa(naming.Next(current)))
	}

	if err = endTx(tx, txStart, err); err != nil {
		return 0, fmt.Errorf("%w: %w", naming.ErrCounterPersist, err)
	}
	return current, nil
}

// Current implements naming.CounterStore.
func (d *Database) Current(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("counter_current", start, err) }()

	var raw string
	raw, err = d.GetMetadata(ctx, counterKey)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return naming.MinCounter, nil
	}
	if err != nil {
		return 0, err
	}
	return parseCounter(raw), nil
}

// Set implements naming.CounterStore.
func (d *Database) Set(ctx context.Context, n int) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("counter_set", start, err) }()

	if err = naming.ValidateCounter(n); err != nil {
		return err
	}
	err = d.SetMetadata(ctx, counterKey, strconv.Itoa(n))
	return err
}
