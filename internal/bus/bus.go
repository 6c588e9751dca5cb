// Package bus is a small synchronous publish/subscribe hub used to observe
// reasoning rounds and batch progress without coupling the orchestrator to
// any particular display.
package bus

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type MsgType string

const (
	MsgRoundStarted      MsgType = "round.started"
	MsgRoundThought      MsgType = "round.thought"
	MsgFinalizeStarted   MsgType = "finalize.started"
	MsgAnswerReady       MsgType = "answer.ready"
	MsgCompletionFailed  MsgType = "completion.failed"
	MsgQueryStarted      MsgType = "query.started"
	MsgQueryCompleted    MsgType = "query.completed"
	MsgQueryFailed       MsgType = "query.failed"
	MsgConversationSaved MsgType = "conversation.saved"
)

// wildcard subscribes to every message type.
const wildcard MsgType = "*"

type Message struct {
	Type    MsgType   `json:"type"`
	QueryID string    `json:"query_id,omitempty"`
	Round   int       `json:"round,omitempty"`
	Rounds  int       `json:"rounds,omitempty"`
	Payload any       `json:"payload,omitempty"`
	Time    time.Time `json:"time"`
}

type Handler func(msg Message)

type entry struct {
	id uint64
	h  Handler
}

// Subscription removes its handler when Unsubscribe is called.
type Subscription struct {
	bus     *MessageBus
	msgType MsgType
	id      uint64
	once    sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.msgType, s.id)
	})
}

type MessageBus struct {
	mu       sync.RWMutex
	handlers map[MsgType][]entry
	nextID   uint64
	logger   *log.Logger
}

// New returns an empty bus. Handler panics are reported on logger; a nil
// logger uses the charmbracelet default.
func New(logger *log.Logger) *MessageBus {
	if logger == nil {
		logger = log.Default()
	}
	return &MessageBus{
		handlers: make(map[MsgType][]entry),
		logger:   logger,
	}
}

func (b *MessageBus) Subscribe(msgType MsgType, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[msgType] = append(b.handlers[msgType], entry{id: b.nextID, h: h})
	return &Subscription{bus: b, msgType: msgType, id: b.nextID}
}

func (b *MessageBus) SubscribeAll(h Handler) *Subscription {
	return b.Subscribe(wildcard, h)
}

func (b *MessageBus) remove(msgType MsgType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.handlers[msgType]
	for i, e := range entries {
		if e.id == id {
			b.handlers[msgType] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Publish runs handlers matching msg on the caller's goroutine. A nil bus
// drops the message.
func (b *MessageBus) Publish(msg Message) {
	if b == nil {
		return
	}
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}

	b.mu.RLock()
	handlers := make([]entry, 0, len(b.handlers[msg.Type])+len(b.handlers[wildcard]))
	handlers = append(handlers, b.handlers[msg.Type]...)
	handlers = append(handlers, b.handlers[wildcard]...)
	b.mu.RUnlock()

	for _, e := range handlers {
		func(handler Handler) {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("bus handler panicked", "type", msg.Type, "panic", r)
				}
			}()
			handler(msg)
		}(e.h)
	}
}
