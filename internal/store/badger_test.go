package store

import (
	"context"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/require"

	"github.com/codespacehelp/partybook/internal/canvas"
)

func Test_Badger_Round_Trip(t *testing.T) {
	req := require.New(t)
	b, err := OpenBadger(t.TempDir(), slog.Default())
	req.NoError(err)
	defer b.Close()

	ctx := context.Background()
	items := []canvas.Item{
		{ID: "x1", Type: "image", URL: "u", X: 10, Y: 20},
		{ID: "x2", Type: "image", URL: "v", X: 30, Y: 40, Width: 300, Height: 200},
	}
	req.NoError(b.SaveItems(ctx, "party", items))

	got, found, err := b.LoadItems(ctx, "party")
	req.NoError(err)
	req.True(found)
	req.Equal(items, got)
}

func Test_Badger_Missing_Room(t *testing.T) {
	req := require.New(t)
	b, err := OpenBadger(t.TempDir(), slog.Default())
	req.NoError(err)
	defer b.Close()

	_, found, err := b.LoadItems(context.Background(), "never-saved")
	req.NoError(err)
	req.False(found)
}

func Test_Badger_Survives_Reopen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	ctx := context.Background()

	b, err := OpenBadger(dir, slog.Default())
	req.NoError(err)
	items := []canvas.Item{{ID: "x1", Type: "image", URL: "u", X: 99, Y: 50}}
	req.NoError(b.SaveItems(ctx, "party", items))
	req.NoError(b.Close())

	// Simulated process restart: same directory, fresh handle.
	b, err = OpenBadger(dir, slog.Default())
	req.NoError(err)
	defer b.Close()

	got, found, err := b.LoadItems(ctx, "party")
	req.NoError(err)
	req.True(found)
	req.Equal(items, got)
}

func Test_Badger_Cleared_Room_Stays_Cleared(t *testing.T) {
	req := require.New(t)
	b, err := OpenBadger(t.TempDir(), slog.Default())
	req.NoError(err)
	defer b.Close()

	ctx := context.Background()
	req.NoError(b.SaveItems(ctx, "party", []canvas.Item{{ID: "x1", Type: "image", URL: "u"}}))
	req.NoError(b.SaveItems(ctx, "party", nil))

	got, found, err := b.LoadItems(ctx, "party")
	req.NoError(err)
	// found must stay true so a reload does not resurrect defaults
	req.True(found)
	req.Empty(got)
}

func Test_Badger_Rooms_Are_Isolated(t *testing.T) {
	req := require.New(t)
	b, err := OpenBadger(t.TempDir(), slog.Default())
	req.NoError(err)
	defer b.Close()

	ctx := context.Background()
	req.NoError(b.SaveItems(ctx, "red", []canvas.Item{{ID: "r1", Type: "image", URL: "u"}}))
	req.NoError(b.SaveItems(ctx, "blue", []canvas.Item{{ID: "b1", Type: "image", URL: "u"}}))

	red, _, err := b.LoadItems(ctx, "red")
	req.NoError(err)
	req.Len(red, 1)
	req.Equal("r1", red[0].ID)

	blue, _, err := b.LoadItems(ctx, "blue")
	req.NoError(err)
	req.Equal("b1", blue[0].ID)
}
