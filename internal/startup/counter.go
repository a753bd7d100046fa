package startup

import (
	"io"

	"media-converter/internal/database"
	"media-converter/internal/logging"
	"media-converter/internal/naming"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenCounter returns the name counter selected by COUNTER_BACKEND along
// with a closer for any connection it holds. The sqlite backend shares the
// library database.
func OpenCounter(config *Config, db *database.Database) (naming.CounterStore, io.Closer, error) {
	switch config.CounterBackend {
	case CounterRedis:
		rc, err := naming.NewRedisCounter(config.RedisAddr, config.RedisKey)
		if err != nil {
			return nil, nil, err
		}
		logging.Info("Name counter stored in Redis at %s", config.RedisAddr)
		return rc, rc, nil
	case CounterMemory:
		logging.Warn("Name counter kept in memory; names restart at %03d after a restart", naming.MinCounter)
		return naming.NewMemoryCounter(naming.MinCounter), nopCloser{}, nil
	default:
		return db, nopCloser{}, nil
	}
}
