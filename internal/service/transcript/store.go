package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/zhouzirui/chatbox/internal/model/chat"
)

// Event describes one append. Index is the position of Message in the transcript.
type Event struct {
	Index   int
	Message chat.Message
}

// Observer is notified after every append. It must not block or append to the
// store it observes.
type Observer func(Event)

// Store holds the ordered, append-only transcript of the current session.
type Store struct {
	mu        sync.RWMutex
	notifyMu  sync.Mutex // held while observers run; taken before mu is released
	messages  []chat.Message
	observers map[uint64]Observer
	order     []uint64
	nextID    uint64
}

// NewStore returns an empty transcript.
func NewStore() *Store {
	return &Store{
		messages:  make([]chat.Message, 0, 16),
		observers: make(map[uint64]Observer),
	}
}

// Append stores msg at the end of the transcript and notifies subscribers.
// Notifications are delivered one append at a time in index order.
// The stored copy, with its assigned ID and timestamp, is returned.
func (s *Store) Append(msg chat.Message) chat.Message {
	msg.ID = uuid.NewString()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	event := Event{Index: len(s.messages) - 1, Message: msg}
	observers := lo.Map(s.order, func(id uint64, _ int) Observer { return s.observers[id] })
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, fn := range observers {
		fn(event)
	}
	return msg
}

// Messages returns a copy of the transcript in append order.
func (s *Store) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}

// Since returns a copy of the messages from index on.
func (s *Store) Since(index int) []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 {
		index = 0
	}
	if index >= len(s.messages) {
		return nil
	}
	copied := make([]chat.Message, len(s.messages)-index)
	copy(copied, s.messages[index:])
	return copied
}

// Len reports the number of messages in the transcript.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Subscribe registers fn for append notifications. The returned func removes it.
func (s *Store) Subscribe(fn Observer) (cancel func()) {
	_, cancel = s.subscribe(fn, false)
	return cancel
}

// SubscribeWithSnapshot registers fn and returns the transcript as it was at
// registration time, so no append is missed or seen twice.
func (s *Store) SubscribeWithSnapshot(fn Observer) ([]chat.Message, func()) {
	return s.subscribe(fn, true)
}

func (s *Store) subscribe(fn Observer, withSnapshot bool) ([]chat.Message, func()) {
	s.mu.Lock()
	var snapshot []chat.Message
	if withSnapshot {
		snapshot = make([]chat.Message, len(s.messages))
		copy(snapshot, s.messages)
	}
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return snapshot, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.observers, id)
			s.order = lo.Without(s.order, id)
		})
	}
}
