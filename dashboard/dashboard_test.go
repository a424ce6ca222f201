package dashboard

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"libman/library"
)

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{Empty: true}, Summarize(nil))

	books := []library.Book{
		{ISBN13: "9780306406157", Title: "A", CopyCount: 3, AvailableCount: 1},
		{ISBN13: "9780132350884", Title: "B", CopyCount: 2, AvailableCount: 2},
	}
	got := Summarize(books)
	assert.Equal(t, Summary{
		TotalTitles:      2,
		TotalCopies:      5,
		AvailableCopies:  3,
		CheckedOutCopies: 2,
	}, got)
}

func TestWatchTracksCatalogChanges(t *testing.T) {
	db, err := library.OpenDatabase(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := library.NewRepository(db, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := Watch(ctx, repo)
	require.NoError(t, err)
	assert.True(t, w.Latest().Empty, "empty catalog yields an empty first summary")

	require.NoError(t, repo.UpsertBooks(ctx, library.Book{
		ISBN13:         "9780306406157",
		Title:          "Test Book",
		CopyCount:      2,
		AvailableCount: 2,
	}))

	select {
	case s, ok := <-w.Updates():
		require.True(t, ok, "updates channel closed early")
		assert.Equal(t, 1, s.TotalTitles)
		assert.Equal(t, 2, s.TotalCopies)
		assert.Equal(t, 2, s.AvailableCopies)
		assert.False(t, s.Empty)
	case <-time.After(2 * time.Second):
		t.Fatal("no summary update after catalog change")
	}
	assert.Equal(t, 1, w.Latest().TotalTitles)
}

func TestWatchStopsOnCancel(t *testing.T) {
	db, err := library.OpenDatabase(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := library.NewRepository(db, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	w, err := Watch(ctx, repo)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-w.Updates():
		assert.False(t, ok, "updates channel should close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("updates channel did not close after cancel")
	}
}
