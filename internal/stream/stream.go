package stream

import (
	"context"
	"sync"
	"time"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/clientinfo"
)

// Activity event kinds.
const (
	KindDocumentViewed = "document.viewed"
	KindDocumentSigned = "document.signed"
	KindNDAAccepted    = "nda.accepted"
)

// ActivityEvent describes one recipient action for live dashboards.
type ActivityEvent struct {
	Kind          string          `json:"kind"`
	DocumentID    string          `json:"documentId,omitempty"`
	DocumentTitle string          `json:"documentTitle,omitempty"`
	SpaceID       string          `json:"spaceId,omitempty"`
	ActorEmail    string          `json:"actorEmail,omitempty"`
	Client        clientinfo.Info `json:"client"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Stream fan-outs activity events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan ActivityEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan ActivityEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan ActivityEvent {
	ch := make(chan ActivityEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt ActivityEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
