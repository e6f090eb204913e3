package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/voicedeskhq/voicedesk/pkg/internal/models"
)

func newPresenceFixture() (*ChannelRegistry, *Dispatcher, *PresenceTracker) {
	registry := NewChannelRegistry()
	dispatcher := NewDispatcher(registry)
	tracker := NewPresenceTracker(dispatcher)
	return registry, dispatcher, tracker
}

func joinSession(registry *ChannelRegistry, tracker *PresenceTracker, session, user string) *fakeConn {
	conn := &fakeConn{}
	registry.Subscribe(session, user, conn)
	tracker.OnConnect(session, user, nil)
	return conn
}

func TestPresenceJoinChoreography(t *testing.T) {
	registry, _, tracker := newPresenceFixture()

	connA := joinSession(registry, tracker, "s1", "A")
	connB := joinSession(registry, tracker, "s1", "B")

	// A got an empty snapshot at its own join, then B's arrival.
	packagesA := connA.packages(t)
	require.Len(t, packagesA, 2)
	require.Equal(t, "session_presence", packagesA[0].Type)
	require.Empty(t, packagesA[0].Data["users"])
	require.Equal(t, "user_connected", packagesA[1].Type)
	require.Equal(t, "B", packagesA[1].Data["user_id"])

	// B never sees its own arrival, only a snapshot listing exactly A.
	packagesB := connB.packages(t)
	require.Len(t, packagesB, 1)
	require.Equal(t, "session_presence", packagesB[0].Type)
	users, ok := packagesB[0].Data["users"].([]any)
	require.True(t, ok)
	require.Len(t, users, 1)
	record, ok := users[0].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "A", record["user_id"])
}

func TestPresenceEditingToggle(t *testing.T) {
	registry, _, tracker := newPresenceFixture()

	connA := joinSession(registry, tracker, "s1", "A")
	connB := joinSession(registry, tracker, "s1", "B")
	before := len(connA.packages(t))

	tracker.SetEditing("s1", "A", lo.ToPtr("sops"))
	tracker.SetEditing("s1", "A", nil)

	record, ok := tracker.GetRecord("s1", "A")
	require.True(t, ok)
	require.Nil(t, record.Editing)

	// Both transitions reach B, neither echoes back to the author.
	packagesB := connB.packages(t)
	var editing []models.StreamPackage
	for _, pkg := range packagesB {
		if pkg.Type == "user_editing" {
			editing = append(editing, pkg)
		}
	}
	require.Len(t, editing, 2)
	require.Equal(t, "sops", editing[0].Data["field"])
	require.Nil(t, editing[1].Data["field"])
	require.Len(t, connA.packages(t), before)
}

func TestPresenceEditingBroadcastOrder(t *testing.T) {
	registry, _, tracker := newPresenceFixture()

	joinSession(registry, tracker, "s1", "A")
	connB := joinSession(registry, tracker, "s1", "B")

	var wg sync.WaitGroup
	for idx := 0; idx < 16; idx++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			tracker.SetEditing("s1", "A", lo.ToPtr(fmt.Sprintf("field-%d", idx)))
		}(idx)
	}
	wg.Wait()

	var editing []models.StreamPackage
	for _, pkg := range connB.packages(t) {
		if pkg.Type == "user_editing" {
			editing = append(editing, pkg)
		}
	}
	require.Len(t, editing, 16)

	// The last frame observers received must describe the state that won.
	record, ok := tracker.GetRecord("s1", "A")
	require.True(t, ok)
	require.NotNil(t, record.Editing)
	require.Equal(t, *record.Editing, editing[len(editing)-1].Data["field"])
}

func TestPresenceDisconnectBroadcast(t *testing.T) {
	registry, _, tracker := newPresenceFixture()

	connA := joinSession(registry, tracker, "s1", "A")
	joinSession(registry, tracker, "s1", "B")

	// Gateway order: the socket leaves the registry before presence is told.
	registry.Unsubscribe("s1", "B")
	tracker.OnDisconnect("s1", "B")
	tracker.OnDisconnect("s1", "B")

	packagesA := connA.packages(t)
	last := packagesA[len(packagesA)-1]
	require.Equal(t, "user_disconnected", last.Type)
	require.Equal(t, "B", last.Data["user_id"])

	// The second disconnect was a no-op, so exactly one farewell went out.
	var farewells int
	for _, pkg := range packagesA {
		if pkg.Type == "user_disconnected" {
			farewells++
		}
	}
	require.Equal(t, 1, farewells)

	require.Len(t, tracker.Snapshot("s1"), 1)
}

func TestPresenceSnapshotIsACopy(t *testing.T) {
	registry, _, tracker := newPresenceFixture()
	joinSession(registry, tracker, "s1", "A")

	snapshot := tracker.Snapshot("s1")
	require.Len(t, snapshot, 1)

	snapshot[0].Editing = lo.ToPtr("tampered")
	record, ok := tracker.GetRecord("s1", "A")
	require.True(t, ok)
	require.Nil(t, record.Editing)
}

func TestPresenceTouchRefreshesLastSeen(t *testing.T) {
	registry, dispatcher, tracker := newPresenceFixture()
	joinSession(registry, tracker, "s1", "A")
	joinSession(registry, tracker, "s1", "B")

	before, ok := tracker.GetRecord("s1", "B")
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	dispatcher.Broadcast("s1", models.StreamPackage{
		Type:      "user_typing",
		SessionID: "s1",
		Timestamp: time.Now(),
	}, "A")

	after, ok := tracker.GetRecord("s1", "B")
	require.True(t, ok)
	require.True(t, after.LastSeen.After(before.LastSeen))
}
