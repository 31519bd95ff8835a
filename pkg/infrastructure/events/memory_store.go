package events

import (
	"sync"

	"go.uber.org/zap"
)

// InMemoryEventStore keeps streams in memory. Subscribers are notified
// synchronously, in subscription order, before AppendEvent returns.
type InMemoryEventStore struct {
	streams     map[string][]Event
	subscribers map[string][]EventHandler
	mutex       sync.RWMutex
	position    int
	allEvents   []Event
	logger      *zap.Logger
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		streams:     make(map[string][]Event),
		subscribers: make(map[string][]EventHandler),
		allEvents:   make([]Event, 0),
		logger:      zap.NewNop(),
	}
}

// WithLogger sets the logger used to report failing handlers
func (s *InMemoryEventStore) WithLogger(logger *zap.Logger) *InMemoryEventStore {
	if logger != nil {
		s.logger = logger.Named("events")
	}
	return s
}

func (s *InMemoryEventStore) AppendEvent(sessionID string, event Event) error {
	s.mutex.Lock()

	eventWithVersion := Record{
		EventType: event.Type(),
		Session:   sessionID,
		Payload:   event.Data(),
		At:        event.OccurredAt(),
		Seq:       len(s.streams[sessionID]) + 1,
	}

	s.streams[sessionID] = append(s.streams[sessionID], eventWithVersion)
	s.allEvents = append(s.allEvents, eventWithVersion)
	s.position++
	handlers := append([]EventHandler(nil), s.subscribers[event.Type()]...)

	s.mutex.Unlock()

	s.notifySubscribers(handlers, eventWithVersion)
	return nil
}

func (s *InMemoryEventStore) ReadEvents(sessionID string, fromVersion int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	events, exists := s.streams[sessionID]
	if !exists {
		return []Event{}, nil
	}

	if fromVersion < 1 {
		fromVersion = 1
	}

	if fromVersion > len(events) {
		return []Event{}, nil
	}

	return append([]Event(nil), events[fromVersion-1:]...), nil
}

func (s *InMemoryEventStore) ReadAllEvents(fromPosition int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if fromPosition < 0 {
		fromPosition = 0
	}

	if fromPosition >= len(s.allEvents) {
		return []Event{}, nil
	}

	return append([]Event(nil), s.allEvents[fromPosition:]...), nil
}

func (s *InMemoryEventStore) Subscribe(eventTypes []string, handler EventHandler) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, eventType := range eventTypes {
		s.subscribers[eventType] = append(s.subscribers[eventType], handler)
	}

	return nil
}

func (s *InMemoryEventStore) Unsubscribe(handler EventHandler) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for eventType, handlers := range s.subscribers {
		newHandlers := make([]EventHandler, 0, len(handlers))
		for _, h := range handlers {
			if h != handler {
				newHandlers = append(newHandlers, h)
			}
		}
		s.subscribers[eventType] = newHandlers
	}

	return nil
}

// Position returns the number of events appended so far
func (s *InMemoryEventStore) Position() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.position
}

func (s *InMemoryEventStore) notifySubscribers(handlers []EventHandler, event Event) {
	for _, handler := range handlers {
		if !handler.CanHandle(event.Type()) {
			continue
		}
		if err := handler.Handle(event); err != nil {
			s.logger.Warn("event handler failed",
				zap.String("event_type", event.Type()),
				zap.String("session_id", event.SessionID()),
				zap.Error(err))
		}
	}
}
