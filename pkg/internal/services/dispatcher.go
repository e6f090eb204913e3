package services

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/voicedeskhq/voicedesk/pkg/internal/models"
)

// A subscriber that cannot take a frame within this window is treated the
// same as one whose socket errored: dropped and unsubscribed.
var writeTimeout = 5 * time.Second

type presenceToucher interface {
	Touch(session, user string)
}

// Dispatcher fans a stream package out to every subscriber of a channel.
// A write error on one subscriber never aborts the batch and never surfaces
// to the producer; the broken connection is unsubscribed on the spot, same
// as an explicit disconnect.
type Dispatcher struct {
	registry *ChannelRegistry
	presence presenceToucher
}

func NewDispatcher(registry *ChannelRegistry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// UsePresence wires the presence tracker in after construction; the tracker
// itself needs the dispatcher, so the two are linked in a second phase.
func (v *Dispatcher) UsePresence(presence presenceToucher) {
	v.presence = presence
}

// Broadcast delivers to each subscriber concurrently and waits for the
// batch, so one slow peer costs at most writeTimeout and never stalls the
// frames of the others.
func (v *Dispatcher) Broadcast(channel string, pkg models.StreamPackage, exclude ...string) {
	payload := pkg.Marshal()
	collab := pkg.SessionID != ""

	var wg sync.WaitGroup
	for _, subscriber := range v.registry.ListSubscribers(channel) {
		if lo.Contains(exclude, subscriber.ID) {
			continue
		}
		wg.Add(1)
		go func(subscriber *Subscriber) {
			defer wg.Done()
			v.deliver(channel, subscriber, payload, collab)
		}(subscriber)
	}
	wg.Wait()
}

func (v *Dispatcher) SendDirect(channel, id string, pkg models.StreamPackage) {
	subscriber, ok := v.registry.GetSubscriber(channel, id)
	if !ok {
		return
	}
	v.deliver(channel, subscriber, pkg.Marshal(), pkg.SessionID != "")
}

func (v *Dispatcher) deliver(channel string, subscriber *Subscriber, payload []byte, collab bool) bool {
	subscriber.writeMu.Lock()
	_ = subscriber.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := subscriber.Conn.WriteMessage(websocket.TextMessage, payload)
	subscriber.writeMu.Unlock()

	if err != nil {
		log.Warn().Err(err).
			Str("channel", channel).
			Str("subscriber", subscriber.ID).
			Msg("Unable to deliver stream package, dropping subscriber...")
		v.registry.Unsubscribe(channel, subscriber.ID)
		return false
	}

	if collab && v.presence != nil {
		v.presence.Touch(channel, subscriber.ID)
	}
	return true
}
