package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voicedeskhq/voicedesk/pkg/internal/models"
)

// sessionPresence holds one session's records. emitMu serializes a mutation
// with its own broadcast, so presence frames leave in the order the
// mutations landed; different sessions never wait on each other.
type sessionPresence struct {
	emitMu  sync.Mutex
	records map[string]*models.PresenceRecord
}

// PresenceTracker keeps live metadata about collaboration-session
// subscribers: who they are, since when, and which field they are editing.
type PresenceTracker struct {
	mu         sync.Mutex
	sessions   map[string]*sessionPresence
	dispatcher *Dispatcher
}

func NewPresenceTracker(dispatcher *Dispatcher) *PresenceTracker {
	tracker := &PresenceTracker{
		sessions:   make(map[string]*sessionPresence),
		dispatcher: dispatcher,
	}
	dispatcher.UsePresence(tracker)
	return tracker
}

func (v *PresenceTracker) getSession(session string, create bool) (*sessionPresence, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	state, ok := v.sessions[session]
	if !ok && create {
		state = &sessionPresence{records: make(map[string]*models.PresenceRecord)}
		v.sessions[session] = state
		ok = true
	}
	return state, ok
}

// OnConnect registers the user's presence, tells everyone else about the
// new arrival, then hands the newcomer a snapshot of the others.
func (v *PresenceTracker) OnConnect(session, user string, info map[string]any) {
	if info == nil {
		info = map[string]any{"name": fmt.Sprintf("User %s", user), "avatar": nil}
	}

	state, _ := v.getSession(session, true)

	state.emitMu.Lock()
	defer state.emitMu.Unlock()

	now := time.Now()
	record := &models.PresenceRecord{
		UserID:      user,
		UserInfo:    info,
		ConnectedAt: now,
		LastSeen:    now,
	}

	v.mu.Lock()
	state.records[user] = record
	// A concurrent disconnect may have retired the session entry between
	// getSession and here; re-anchor it so the record stays reachable.
	v.sessions[session] = state
	others := snapshotRecords(state, user)
	v.mu.Unlock()

	v.dispatcher.Broadcast(session, models.StreamPackage{
		Type:      "user_connected",
		SessionID: session,
		Data:      map[string]any{"user_id": user, "user_info": info},
		Timestamp: now,
	}, user)

	v.dispatcher.SendDirect(session, user, models.StreamPackage{
		Type:      "session_presence",
		SessionID: session,
		Data:      map[string]any{"users": others},
		Timestamp: now,
	})

	log.Info().Str("session", session).Str("user", user).Msg("User connected to collaboration session...")
}

// OnDisconnect drops the user's presence and notifies the rest of the
// session. Calling it for a user already gone is a no-op.
func (v *PresenceTracker) OnDisconnect(session, user string) {
	state, ok := v.getSession(session, false)
	if !ok {
		return
	}

	state.emitMu.Lock()
	defer state.emitMu.Unlock()

	v.mu.Lock()
	if _, ok := state.records[user]; !ok {
		v.mu.Unlock()
		return
	}
	delete(state.records, user)
	if len(state.records) == 0 && v.sessions[session] == state {
		delete(v.sessions, session)
	}
	v.mu.Unlock()

	v.dispatcher.Broadcast(session, models.StreamPackage{
		Type:      "user_disconnected",
		SessionID: session,
		Data:      map[string]any{"user_id": user},
		Timestamp: time.Now(),
	})

	log.Info().Str("session", session).Str("user", user).Msg("User disconnected from collaboration session...")
}

// SetEditing records which field the user is editing (nil for none) and
// broadcasts the change to everyone but the author. Racing updates for the
// same user resolve last-writer-wins, and the broadcasts go out in the
// order the updates were applied.
func (v *PresenceTracker) SetEditing(session, user string, field *string) {
	state, ok := v.getSession(session, false)
	if !ok {
		return
	}

	state.emitMu.Lock()
	defer state.emitMu.Unlock()

	v.mu.Lock()
	record, ok := state.records[user]
	if !ok {
		v.mu.Unlock()
		return
	}
	record.Editing = field
	v.mu.Unlock()

	v.dispatcher.Broadcast(session, models.StreamPackage{
		Type:      "user_editing",
		SessionID: session,
		Data:      map[string]any{"user_id": user, "field": field},
		Timestamp: time.Now(),
	}, user)
}

// Touch refreshes the user's last-seen timestamp. Called by the dispatcher
// after every successful send on a collaboration channel.
func (v *PresenceTracker) Touch(session, user string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if state, ok := v.sessions[session]; ok {
		if record, ok := state.records[user]; ok {
			record.LastSeen = time.Now()
		}
	}
}

// Snapshot returns a copy of every presence record in the session.
func (v *PresenceTracker) Snapshot(session string) []models.PresenceRecord {
	v.mu.Lock()
	defer v.mu.Unlock()

	if state, ok := v.sessions[session]; ok {
		return snapshotRecords(state, "")
	}
	return []models.PresenceRecord{}
}

func snapshotRecords(state *sessionPresence, exclude string) []models.PresenceRecord {
	records := make([]models.PresenceRecord, 0, len(state.records))
	for user, record := range state.records {
		if exclude != "" && user == exclude {
			continue
		}
		records = append(records, *record)
	}
	return records
}

func (v *PresenceTracker) GetRecord(session, user string) (models.PresenceRecord, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if state, ok := v.sessions[session]; ok {
		if record, ok := state.records[user]; ok {
			return *record, true
		}
	}
	return models.PresenceRecord{}, false
}
