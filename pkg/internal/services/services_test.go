package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/voicedeskhq/voicedesk/pkg/internal/models"
)

// fakeConn records every frame written to it; flipping broken makes each
// write fail the way a dead socket does.
type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	broken   bool
	closed   bool
	deadline time.Time
}

func (v *fakeConn) SetWriteDeadline(t time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.deadline = t
	return nil
}

func (v *fakeConn) WriteMessage(messageType int, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.broken {
		return errors.New("broken pipe")
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	v.frames = append(v.frames, frame)
	return nil
}

func (v *fakeConn) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.closed = true
	return nil
}

func (v *fakeConn) packages(t *testing.T) []models.StreamPackage {
	t.Helper()

	v.mu.Lock()
	defer v.mu.Unlock()

	packages := make([]models.StreamPackage, 0, len(v.frames))
	for _, frame := range v.frames {
		var pkg models.StreamPackage
		require.NoError(t, jsoniter.Unmarshal(frame, &pkg))
		packages = append(packages, pkg)
	}
	return packages
}

type storeWrite struct {
	callID    uint
	eventType string
	payload   map[string]any
	fields    map[string]any
}

type fakeCallStore struct {
	calls  map[string]models.Call
	writes []storeWrite
	finds  int
	fail   bool
}

func newFakeCallStore(calls ...models.Call) *fakeCallStore {
	store := &fakeCallStore{calls: make(map[string]models.Call)}
	for _, call := range calls {
		store.calls[call.ProviderCallID] = call
	}
	return store
}

func (v *fakeCallStore) FindCallByProviderID(id string) (models.Call, error) {
	v.finds++
	if call, ok := v.calls[id]; ok {
		return call, nil
	}
	return models.Call{}, gorm.ErrRecordNotFound
}

func (v *fakeCallStore) RecordEventWithTransition(callID uint, eventType string, payload map[string]any, fields map[string]any) error {
	if v.fail {
		return errors.New("connection refused")
	}
	v.writes = append(v.writes, storeWrite{
		callID:    callID,
		eventType: eventType,
		payload:   payload,
		fields:    fields,
	})
	return nil
}
