package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"log/slog"

	"github.com/codespacehelp/partybook/internal/canvas"
)

// Badger is the embedded store backend: a local key-value database, no
// external service needed. Each room lives under one key "room:<name>"
// holding the JSON-encoded item slice.
type Badger struct {
	db  *badger.DB
	log *slog.Logger
}

// OpenBadger opens (or creates) the database directory.
func OpenBadger(dir string, log *slog.Logger) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, err
	}
	return &Badger{db: db, log: log}, nil
}

func (b *Badger) Close() error { return b.db.Close() }

func roomKey(room string) []byte { return []byte("room:" + room) }

func (b *Badger) LoadItems(_ context.Context, room string) ([]canvas.Item, bool, error) {
	var blob []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(room))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var items []canvas.Item
	if err := json.Unmarshal(blob, &items); err != nil {
		return nil, false, err
	}
	return items, true, nil
}

func (b *Badger) SaveItems(_ context.Context, room string, items []canvas.Item) error {
	if items == nil {
		items = []canvas.Item{}
	}
	blob, err := json.Marshal(items)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(room), blob)
	})
	if err != nil {
		return err
	}
	b.log.Debug("room.saved", "room", room, "items", len(items))
	return nil
}
