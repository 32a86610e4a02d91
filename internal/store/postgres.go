package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"log/slog"

	"github.com/codespacehelp/partybook/internal/app"
	"github.com/codespacehelp/partybook/internal/canvas"
)

type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgres connects to postgres and returns a pool wrapper
func NewPostgres(ctx context.Context, cfg app.Config, log *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool, log: log}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// LoadItems reads the room row; a room that was never saved is not an error
func (p *Postgres) LoadItems(ctx context.Context, room string) ([]canvas.Item, bool, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT items
		FROM rooms
		WHERE name = $1
	`, room)

	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var items []canvas.Item
	if err := json.Unmarshal(blob, &items); err != nil {
		return nil, false, err
	}
	return items, true, nil
}

// SaveItems upserts the room's whole item collection and bumps the timestamp
func (p *Postgres) SaveItems(ctx context.Context, room string, items []canvas.Item) error {
	if items == nil {
		items = []canvas.Item{}
	}
	blob, err := json.Marshal(items)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO rooms (name, items)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE
		SET items = EXCLUDED.items, updated_at = NOW()
	`, room, blob)
	if err != nil {
		return err
	}
	p.log.Debug("room.saved", "room", room, "items", len(items))
	return nil
}
