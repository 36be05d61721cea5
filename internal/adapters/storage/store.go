// Package storage provides the persistent key-value backends that hold the
// cached score snapshot.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// Supported driver names.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Storage is a string key-value store.
type Storage interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// Drivers lists every supported driver name.
func Drivers() []string {
	return []string{DriverMemory, DriverSQLite, DriverRedis}
}

// New opens the backend named by driver.
func New(driver string, opts ...Option) (Storage, error) {
	o := options{
		sqlitePath: defaultSQLitePath,
		redisAddr:  defaultRedisAddr,
		keyPrefix:  defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(&o)
	}

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return NewSQLite(o.sqlitePath)
	case DriverRedis:
		return NewRedis(o.redisAddr, o.redisDB, o.keyPrefix)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
