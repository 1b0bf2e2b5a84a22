package environment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_Get(t *testing.T) {
	store := NewStore(Environment{})
	require.Nil(t, store.Get().Root)

	root := "https://host.example"
	store.Set(Environment{Root: &root})

	require.NotNil(t, store.Get().Root)
	require.Equal(t, "https://host.example", *store.Get().Root)
}

func TestStore_ReplaysLatestToLateSubscriber(t *testing.T) {
	store := NewStore(Environment{})

	root := "https://host.example"
	store.Set(Environment{Root: &root})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := store.Subscribe(ctx)

	env := <-updates
	require.NotNil(t, env.Root)
	require.Equal(t, "https://host.example", *env.Root)
}

func TestStore_DeliversUpdatesInOrder(t *testing.T) {
	store := NewStore(Environment{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := store.Subscribe(ctx)
	<-updates // initial snapshot

	for _, root := range []string{"a", "b", "c"} {
		store.Set(Environment{Root: &root})

		env := <-updates
		require.NotNil(t, env.Root)
		require.Equal(t, root, *env.Root)
	}
}

func TestStore_CoalescesForSlowSubscriber(t *testing.T) {
	store := NewStore(Environment{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := store.Subscribe(ctx)
	// Leave the initial snapshot unread so every Set below lands on a
	// full buffer.

	for _, root := range []string{"a", "b", "c"} {
		store.Set(Environment{Root: &root})
	}

	env := <-updates
	require.NotNil(t, env.Root)
	require.Equal(t, "c", *env.Root)

	select {
	case stale := <-updates:
		t.Fatalf("unexpected extra snapshot: %+v", stale)
	default:
	}
}

func TestStore_SubscriptionClosesOnContextDone(t *testing.T) {
	store := NewStore(Environment{})

	ctx, cancel := context.WithCancel(context.Background())
	updates := store.Subscribe(ctx)
	<-updates // initial snapshot

	cancel()

	_, ok := <-updates
	require.False(t, ok)

	// A Set after unsubscribe must not panic or block.
	root := "https://host.example"
	store.Set(Environment{Root: &root})
}

func TestStore_IndependentSubscribers(t *testing.T) {
	store := NewStore(Environment{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fast := store.Subscribe(ctx)
	slow := store.Subscribe(ctx)
	<-fast // initial snapshot; leave slow's unread

	for _, root := range []string{"a", "b"} {
		store.Set(Environment{Root: &root})

		env := <-fast
		require.Equal(t, root, *env.Root)
	}

	// The slow subscriber sees only the newest snapshot.
	env := <-slow
	require.NotNil(t, env.Root)
	require.Equal(t, "b", *env.Root)
}
