package audit

import (
	"encoding/json"
	"os"
	"sync"
)

// FileSink appends one JSON line per event to a file. It is the primary
// sink: its failure is fatal because the file log plus hash chain is
// the system's source of truth.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (creating if necessary) the file at path for
// append-only writes.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f}, nil
}

func (s *FileSink) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := s.file.Write(line); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *FileSink) Primary() bool { return true }

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// ListenerSink fans events out to in-memory subscriber channels,
// used by tests and in-process consumers (dashboards, replay tooling)
// that want a live feed without reading the file back. Always advisory:
// a full or closed subscriber channel never blocks or fails Append.
type ListenerSink struct {
	mu          sync.Mutex
	subscribers []chan Event
	recorded    []Event
}

// NewListenerSink constructs an empty ListenerSink.
func NewListenerSink() *ListenerSink {
	return &ListenerSink{}
}

// Subscribe registers a buffered channel that receives every future
// event. The buffer size controls how far a slow subscriber can lag;
// while its buffer is full, each new event is silently dropped for it
// and the events already buffered are kept (non-blocking delivery, same
// contract as the top-of-book publisher).
func (s *ListenerSink) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

func (s *ListenerSink) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, e)
	for _, ch := range s.subscribers {
		select {
		case ch <- e:
		default:
			// slow subscriber; drop rather than block the critical section.
		}
	}
	return nil
}

func (s *ListenerSink) Primary() bool { return false }

// Events returns every event recorded so far, for test assertions.
func (s *ListenerSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.recorded))
	copy(out, s.recorded)
	return out
}

// NullDatabaseSink stands in for the relational persistence collaborator
// that lives outside this process (the engine emits events; a sink
// persists them). It is advisory and simply no-ops, giving the wiring a
// concrete seam without reaching into a database driver the engine does
// not own.
type NullDatabaseSink struct{}

func (NullDatabaseSink) Write(Event) error { return nil }
func (NullDatabaseSink) Primary() bool     { return false }
