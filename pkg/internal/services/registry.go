package services

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Conn is the slice of a websocket connection the realtime layer needs.
// Satisfied by *websocket.Conn from gofiber/contrib; tests substitute fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Subscriber is one live connection registered to a channel. All outbound
// frames go through the dispatcher, which serializes them on writeMu; the
// underlying websocket forbids concurrent writers.
type Subscriber struct {
	ID          string
	ChannelKey  string
	Conn        Conn
	ConnectedAt time.Time

	writeMu sync.Mutex
}

// ChannelRegistry maps a channel key (provider call id or collaboration
// session id) to its current subscribers. Channels are created lazily on
// first subscribe and removed when the last subscriber leaves, so the map
// never grows beyond the set of live connections.
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[string]map[string]*Subscriber
}

func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{
		channels: make(map[string]map[string]*Subscriber),
	}
}

// Subscribe registers a connection under (channel, id). Subscribing twice
// with the same id replaces the connection handle, so a reconnect never
// leaves a duplicate entry behind.
func (v *ChannelRegistry) Subscribe(channel, id string, conn Conn) *Subscriber {
	v.mu.Lock()
	defer v.mu.Unlock()

	subscribers, ok := v.channels[channel]
	if !ok {
		subscribers = make(map[string]*Subscriber)
		v.channels[channel] = subscribers
	}

	subscriber := &Subscriber{
		ID:          id,
		ChannelKey:  channel,
		Conn:        conn,
		ConnectedAt: time.Now(),
	}
	if prev, ok := subscribers[id]; ok {
		subscriber.ConnectedAt = prev.ConnectedAt
	}
	subscribers[id] = subscriber

	log.Debug().Str("channel", channel).Str("subscriber", id).Msg("Subscriber joined channel...")

	return subscriber
}

// Unsubscribe removes (channel, id) from the registry. Unknown channels and
// ids are silently ignored, which makes double-disconnect harmless.
func (v *ChannelRegistry) Unsubscribe(channel, id string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	subscribers, ok := v.channels[channel]
	if !ok {
		return
	}
	if _, ok := subscribers[id]; !ok {
		return
	}

	delete(subscribers, id)
	if len(subscribers) == 0 {
		delete(v.channels, channel)
	}

	log.Debug().Str("channel", channel).Str("subscriber", id).Msg("Subscriber left channel...")
}

// ListSubscribers returns a snapshot of the channel's subscribers; iterating
// it can never race with concurrent subscribe or unsubscribe.
func (v *ChannelRegistry) ListSubscribers(channel string) []*Subscriber {
	v.mu.RLock()
	defer v.mu.RUnlock()

	subscribers := make([]*Subscriber, 0, len(v.channels[channel]))
	for _, subscriber := range v.channels[channel] {
		subscribers = append(subscribers, subscriber)
	}
	return subscribers
}

func (v *ChannelRegistry) GetSubscriber(channel, id string) (*Subscriber, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	subscriber, ok := v.channels[channel][id]
	return subscriber, ok
}

func (v *ChannelRegistry) CountSubscribers(channel string) int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return len(v.channels[channel])
}

// CloseAll drops every live connection without attempting further sends.
// Used on process shutdown.
func (v *ChannelRegistry) CloseAll() {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, subscribers := range v.channels {
		for _, subscriber := range subscribers {
			_ = subscriber.Conn.Close()
		}
	}
	v.channels = make(map[string]map[string]*Subscriber)
}
