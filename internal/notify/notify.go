// Package notify fan-outs ledger mutation events to in-process subscribers.
// UI and metrics collaborators observe changes through it instead of polling
// the book.
package notify

import (
	"context"
	"sync"
	"time"
)

// Mutation operation names carried by events.
const (
	OpTransactionAdd         = "transaction.add"
	OpTransactionRemove      = "transaction.remove"
	OpComponentAdd           = "component.add"
	OpComponentRemove        = "component.remove"
	OpComponentUpdateAmount  = "component.update_amount"
	OpComponentUpdateAccount = "component.update_account"
	OpBalanceRecalculate     = "balance.recalculate"
)

// Event describes a single committed ledger mutation.
type Event struct {
	Op            string    `json:"op"`
	Owner         string    `json:"owner"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	AccountIDs    []int64   `json:"account_ids,omitempty"`
	RawAmount     int64     `json:"raw_amount,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Stream fan-outs events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

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
func (s *Stream) Publish(evt Event) {
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
