package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/sitepick/internal/game"
	"github.com/robalobadob/sitepick/internal/listing"
)

func newSession(t *testing.T, id string, now time.Time) *game.Session {
	t.Helper()
	s, err := game.NewSession(
		[]listing.Listing{{ID: 1, Title: "a", IsGood: true}},
		game.Options{ID: id, Scheduler: game.NewFakeScheduler(), Now: func() time.Time { return now }},
	)
	require.NoError(t, err)
	return s
}

func TestMemoryStore_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	s := newSession(t, "abc", time.Now())

	require.NoError(t, st.Save(ctx, s))
	got, err := st.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, st.Delete(ctx, "abc"))
	_, err = st.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, st.Delete(ctx, "missing"))
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.Save(ctx, newSession(t, "old", base.Add(-time.Hour))))
	require.NoError(t, st.Save(ctx, newSession(t, "fresh", base)))

	assert.Equal(t, 1, st.Sweep(ctx, base.Add(-30*time.Minute)))

	_, err := st.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestMemoryStore_SweepSparesTouched(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s, err := game.NewSession(
		[]listing.Listing{{ID: 1, Title: "a", IsGood: true}},
		game.Options{ID: "watched", Scheduler: game.NewFakeScheduler(), Now: func() time.Time { return now }},
	)
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, s))

	now = now.Add(time.Hour)
	s.Touch()

	assert.Equal(t, 0, st.Sweep(ctx, now.Add(-30*time.Minute)))
	_, err = st.Get(ctx, "watched")
	assert.NoError(t, err)
}

func TestJanitor_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := NewMemoryStore()
	require.NoError(t, st.Save(ctx, newSession(t, "old", time.Now().Add(-time.Hour))))

	swept := make(chan int, 8)
	done := make(chan struct{})
	go func() {
		Janitor(ctx, st, 5*time.Millisecond, time.Minute, func(n int) {
			select {
			case swept <- n:
			default:
			}
		})
		close(done)
	}()

	select {
	case n := <-swept:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("janitor never swept")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
