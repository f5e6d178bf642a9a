package history

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/wayfind-dev/wayfind/pkg/urlpath"
)

// Socket frame types.
const (
	frameNavigate = "navigate"
	frameGo       = "go"
	framePopState = "popstate"
)

// socketFrame is the wire format shared by both directions.
type socketFrame struct {
	Type    string `json:"type"`
	Path    string `json:"path,omitempty"`
	Replace bool   `json:"replace,omitempty"`
	Delta   int    `json:"delta,omitempty"`
}

// Socket drives the location of a remote thin client over a websocket.
// Push/Replace/Go emit frames to the client, which applies them to its
// host history; the client reports back/forward traversal as popstate
// frames, which surface through Listen.
type Socket struct {
	conn   *websocket.Conn
	logger *slog.Logger

	mu        sync.Mutex
	current   Entry
	listeners map[int]func(Entry)
	nextID    int
	closed    bool
	done      chan struct{}

	// ended closes when the read loop exits, whether by Close or by the
	// connection going away.
	ended chan struct{}
}

// NewSocket creates a websocket history adapter positioned at start and
// begins reading client frames. Close must be called to stop the read
// loop; it does not close the underlying connection.
func NewSocket(conn *websocket.Conn, start string, logger *slog.Logger) (*Socket, error) {
	loc, err := urlpath.Parse(start)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Socket{
		conn:      conn,
		logger:    logger,
		current:   Entry{Location: loc},
		listeners: make(map[int]func(Entry)),
		done:      make(chan struct{}),
		ended:     make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Current implements Adapter.
func (s *Socket) Current() Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Push implements Adapter.
func (s *Socket) Push(entry Entry) {
	s.apply(entry, false)
}

// Replace implements Adapter.
func (s *Socket) Replace(entry Entry) {
	s.apply(entry, true)
}

func (s *Socket) apply(entry Entry, replace bool) {
	s.mu.Lock()
	s.current = entry
	s.mu.Unlock()

	s.send(socketFrame{
		Type:    frameNavigate,
		Path:    entry.Location.FullPath(),
		Replace: replace,
	})
}

// Go implements Adapter. The traversal result arrives asynchronously as
// a popstate frame from the client.
func (s *Socket) Go(delta int) {
	if delta == 0 {
		return
	}
	s.send(socketFrame{Type: frameGo, Delta: delta})
}

// Listen implements Adapter.
func (s *Socket) Listen(fn func(Entry)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Close stops the read loop. Safe to call more than once.
func (s *Socket) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
}

func (s *Socket) send(frame socketFrame) {
	if err := s.conn.WriteJSON(frame); err != nil {
		s.logger.Error("history frame write failed",
			"type", frame.Type,
			"error", err)
	}
}

// Done returns a channel that closes when the read loop has exited.
func (s *Socket) Done() <-chan struct{} {
	return s.ended
}

// readLoop turns inbound popstate frames into listener callbacks.
func (s *Socket) readLoop() {
	defer close(s.ended)
	for {
		var frame socketFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Debug("history read loop ended", "error", err)
			}
			return
		}
		if frame.Type != framePopState {
			continue
		}
		loc, err := urlpath.Parse(frame.Path)
		if err != nil {
			s.logger.Warn("client sent invalid popstate path",
				"path", frame.Path,
				"error", err)
			continue
		}
		entry := Entry{Location: loc}

		s.mu.Lock()
		s.current = entry
		fns := make([]func(Entry), 0, len(s.listeners))
		for _, fn := range s.listeners {
			fns = append(fns, fn)
		}
		s.mu.Unlock()

		for _, fn := range fns {
			fn(entry)
		}
	}
}
