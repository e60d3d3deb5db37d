package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// Pebble persists client state in a local pebble database.
type Pebble struct {
	db  *pebble.DB
	log *zap.Logger
}

// OpenPebble opens (or creates) the database at path.
func OpenPebble(path string, log *zap.Logger) (*Pebble, error) {
	log.Debug("opening_pebble_db", zap.String("path", path))
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &Pebble{db: db, log: log}, nil
}

func (p *Pebble) Get(_ context.Context, key string) (string, error) {
	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		p.log.Error("get_key_failed", zap.String("key", key), zap.Error(err))
		return "", err
	}
	defer closer.Close()
	return string(v), nil
}

func (p *Pebble) Set(_ context.Context, key, value string) error {
	return p.db.Set([]byte(key), []byte(value), pebble.Sync)
}

func (p *Pebble) Delete(_ context.Context, key string) error {
	return p.db.Delete([]byte(key), pebble.Sync)
}

func (p *Pebble) Close() error {
	return p.db.Close()
}
