package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypoint/console/domain/entities"
	"github.com/relaypoint/console/internal/conn"
)

const subscriberBuffer = 64

// EventKind classifies a stream mutation for subscribers.
type EventKind string

const (
	EventAppended EventKind = "appended"
	EventUpdated  EventKind = "updated"
	EventCleared  EventKind = "cleared"
)

// Event notifies subscribers of one stream mutation.
type Event struct {
	Kind    EventKind
	Message *entities.Message
}

// ErrAlreadySeeded is returned when LoadInitial is called twice.
var ErrAlreadySeeded = errors.New("stream already seeded")

// Stream is the single ordered, de-duplicated view of the conversation.
// Entries are append-only in arrival order; an entry never moves and is never
// removed individually. The sequence is not re-sorted by timestamp, so clock
// skew between server and client cannot reorder the visible log.
type Stream struct {
	logger *zap.Logger

	mu      sync.Mutex
	seq     []*entities.Message
	index   map[string]*entities.Message
	seeded  bool
	subs    map[int]chan Event
	nextSub int
}

// New creates an empty stream.
func New(logger *zap.Logger) *Stream {
	return &Stream{
		logger: logger,
		index:  make(map[string]*entities.Message),
		subs:   make(map[int]chan Event),
	}
}

// LoadInitial seeds the sequence from the history endpoint, once. Live
// ingestion may already be running when the history response lands, so any
// entry whose dedup key is already registered collapses into the socket's
// copy instead of appearing twice.
func (s *Stream) LoadInitial(history []*entities.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seeded {
		return ErrAlreadySeeded
	}
	s.seeded = true

	seeded := 0
	for _, msg := range history {
		if existing := s.lookupMessageLocked(msg); existing != nil {
			existing.Confirm()
			// The history copy may carry keys the raced-ahead frame
			// lacked; register them so later redeliveries also collapse.
			s.aliasLocked(msg, existing)
			continue
		}
		s.registerLocked(msg)
		s.seq = append(s.seq, msg)
		seeded++
	}

	s.logger.Info("History loaded",
		zap.Int("messages", seeded),
		zap.Int("collapsed", len(history)-seeded))
	return nil
}

// Ingest merges one inbound frame. A frame whose dedup key is already known
// resolves the existing entry's status in place: error frames fail it, every
// other kind confirms it; no new visible entry is created either way.
// Otherwise message and system frames append a new confirmed entry at the
// tail. Applying the same frame twice never produces two visible entries.
func (s *Stream) Ingest(frame *conn.InboundFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := frame.DedupKey()
	if key != "" {
		if existing := s.lookupLocked(frame); existing != nil {
			if frame.Kind == conn.FrameKindError {
				existing.Fail()
			} else {
				existing.Confirm()
			}
			// A server id arriving for an optimistic entry becomes an
			// additional dedup key, so later redeliveries also collapse.
			if frame.ServerID != "" {
				s.index["sid:"+frame.ServerID] = existing
			}
			s.publishLocked(Event{Kind: EventUpdated, Message: existing})
			return
		}
	}

	switch frame.Kind {
	case conn.FrameKindMessage, conn.FrameKindSystem:
	default:
		// Acks and presence frames never create visible entries.
		return
	}

	msg := messageFromFrame(frame)
	s.registerLocked(msg)
	s.seq = append(s.seq, msg)
	s.publishLocked(Event{Kind: EventAppended, Message: msg})
}

// AppendOptimistic shows a just-sent operator message before the server
// confirms it. A later Ingest with the same correlation key upgrades this
// entry in place instead of duplicating it.
func (s *Stream) AppendOptimistic(msg *entities.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registerLocked(msg)
	s.seq = append(s.seq, msg)
	s.publishLocked(Event{Kind: EventAppended, Message: msg})
}

// Clear empties the sequence and the dedup index atomically. Explicit user
// action only.
func (s *Stream) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq = nil
	s.index = make(map[string]*entities.Message)
	s.publishLocked(Event{Kind: EventCleared})
}

// Snapshot returns the visible sequence in order.
func (s *Stream) Snapshot() []*entities.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*entities.Message, len(s.seq))
	copy(out, s.seq)
	return out
}

// Len returns the number of visible entries.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seq)
}

// Subscribe registers a consumer of stream mutations. The returned func
// unsubscribes.
func (s *Stream) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// Run consumes inbound frames from the connection until the channel closes.
func (s *Stream) Run(frames <-chan *conn.InboundFrame) {
	for frame := range frames {
		s.Ingest(frame)
	}
}

func (s *Stream) lookupLocked(frame *conn.InboundFrame) *entities.Message {
	if frame.ServerID != "" {
		if msg, ok := s.index["sid:"+frame.ServerID]; ok {
			return msg
		}
	}
	if frame.CorrelationID != "" {
		if msg, ok := s.index["cid:"+frame.CorrelationID]; ok {
			return msg
		}
	}
	return nil
}

func (s *Stream) lookupMessageLocked(msg *entities.Message) *entities.Message {
	if msg.ID != "" {
		if existing, ok := s.index["sid:"+msg.ID]; ok {
			return existing
		}
	}
	if msg.CorrelationID != "" {
		if existing, ok := s.index["cid:"+msg.CorrelationID]; ok {
			return existing
		}
	}
	return nil
}

// aliasLocked points msg's dedup keys at an existing entry.
func (s *Stream) aliasLocked(msg, existing *entities.Message) {
	if msg.ID != "" {
		s.index["sid:"+msg.ID] = existing
	}
	if msg.CorrelationID != "" {
		s.index["cid:"+msg.CorrelationID] = existing
	}
}

func (s *Stream) registerLocked(msg *entities.Message) {
	if msg.ID != "" {
		s.index["sid:"+msg.ID] = msg
	}
	if msg.CorrelationID != "" {
		s.index["cid:"+msg.CorrelationID] = msg
	}
}

func (s *Stream) publishLocked(ev Event) {
	for _, sub := range s.subs {
		select {
		case sub <- ev:
		default:
			s.logger.Warn("Stream subscriber lagging, event dropped")
		}
	}
}

func messageFromFrame(frame *conn.InboundFrame) *entities.Message {
	role := frame.Role
	if role == "" {
		if frame.Kind == conn.FrameKindSystem {
			role = entities.MessageRoleSystem
		} else {
			role = entities.MessageRoleAssistant
		}
	}

	id := frame.ServerID
	if id == "" {
		id = uuid.NewString()
	}

	createdAt := time.Now()
	if frame.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, frame.Timestamp); err == nil {
			createdAt = ts
		}
	}

	return &entities.Message{
		ID:            id,
		CorrelationID: frame.CorrelationID,
		Role:          role,
		Content:       frame.Content,
		CreatedAt:     createdAt,
		Status:        entities.MessageStatusConfirmed,
		Attachments:   frame.Attachments,
		Metadata:      frame.Metadata,
	}
}
