package backend

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/NorthFat/msgq/internal/shm"
	"nhooyr.io/websocket"
)

// NetworkPublisher is the Backend{Network} variant named in the
// façade's capability set: a publisher that broadcasts each Send over
// a websocket to every currently connected subscriber, rather than
// through a shared-memory ring. It exists so the façade's polymorphic
// dispatch (ZMQ vs MSGQ) has a second real transport to switch on, not
// to replicate the shared-memory variant's delivery guarantees.
type NetworkPublisher struct {
	ln  net.Listener
	srv *http.Server

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewNetworkPublisher starts a websocket server on addr; each
// connection it accepts becomes a broadcast target for Send.
func NewNetworkPublisher(addr string) (*NetworkPublisher, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %v", shm.ErrIO, addr, err)
	}
	p := &NetworkPublisher{ln: ln, conns: make(map[*websocket.Conn]struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("/", p.accept)
	p.srv = &http.Server{Handler: mux}
	go p.srv.Serve(ln)
	return p, nil
}

func (p *NetworkPublisher) accept(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	p.mu.Lock()
	p.conns[c] = struct{}{}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.conns, c)
		p.mu.Unlock()
		c.Close(websocket.StatusNormalClosure, "")
	}()
	ctx := r.Context()
	for {
		if _, _, err := c.Read(ctx); err != nil {
			return
		}
	}
}

// Send broadcasts payload to every connected subscriber, dropping any
// connection that fails to keep up within a short write deadline.
func (p *NetworkPublisher) Send(payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p.mu.Lock()
	targets := make([]*websocket.Conn, 0, len(p.conns))
	for c := range p.conns {
		targets = append(targets, c)
	}
	p.mu.Unlock()

	for _, c := range targets {
		if err := c.Write(ctx, websocket.MessageBinary, payload); err != nil {
			p.mu.Lock()
			delete(p.conns, c)
			p.mu.Unlock()
		}
	}
	return nil
}

// AllReadersUpdated has no wire-level equivalent over a websocket
// broadcast (there is no shared cursor subscribers publish their
// consumption position into); it always reports true. Callers that
// need delivery confirmation belong on the shared-memory variant.
func (p *NetworkPublisher) AllReadersUpdated() bool { return true }

func (p *NetworkPublisher) RawHandle() any { return p.ln }

func (p *NetworkPublisher) Close() error {
	p.mu.Lock()
	for c := range p.conns {
		c.Close(websocket.StatusNormalClosure, "")
	}
	p.mu.Unlock()
	return p.srv.Close()
}

// NetworkSubscriber is the Backend{Network} subscriber counterpart: it
// dials a NetworkPublisher's websocket endpoint and buffers incoming
// frames so Recv/MsgReady can offer the same non-blocking-poll and
// timeout contract as the shared-memory variant.
type NetworkSubscriber struct {
	conn *websocket.Conn

	ch    chan []byte
	errCh chan error
	done  chan struct{}

	closeOnce sync.Once
}

// NewNetworkSubscriber dials url (a ws:// or wss:// address) and
// starts reading frames in the background.
func NewNetworkSubscriber(url string) (*NetworkSubscriber, error) {
	c, _, err := websocket.Dial(context.Background(), url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", shm.ErrIO, url, err)
	}
	s := &NetworkSubscriber{
		conn:  c,
		ch:    make(chan []byte, 64),
		errCh: make(chan error, 1),
		done:  make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *NetworkSubscriber) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.Read(context.Background())
		if err != nil {
			select {
			case s.errCh <- err:
			default:
			}
			return
		}
		select {
		case s.ch <- data:
		default:
			// Buffer full: drop the oldest buffered frame to make room
			// for the newest, the network variant's approximation of
			// conflate under backpressure.
			select {
			case <-s.ch:
			default:
			}
			s.ch <- data
		}
	}
}

func (s *NetworkSubscriber) Recv(timeoutMs int, conflate bool) ([]byte, error) {
	if timeoutMs == 0 {
		select {
		case data := <-s.ch:
			return s.maybeConflate(data, conflate), nil
		default:
			return nil, nil
		}
	}

	var timeoutCh <-chan time.Time
	if timeoutMs > 0 {
		t := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer t.Stop()
		timeoutCh = t.C
	}
	// timeoutMs < 0: timeoutCh stays nil, so the select below blocks on
	// it forever instead of timing out.

	select {
	case data := <-s.ch:
		return s.maybeConflate(data, conflate), nil
	case err := <-s.errCh:
		return nil, fmt.Errorf("%w: %v", shm.ErrIO, err)
	case <-timeoutCh:
		return nil, shm.ErrTimeout
	case <-s.done:
		return nil, shm.ErrIO
	}
}

func (s *NetworkSubscriber) maybeConflate(data []byte, conflate bool) []byte {
	if !conflate {
		return data
	}
	for {
		select {
		case newer := <-s.ch:
			data = newer
		default:
			return data
		}
	}
}

func (s *NetworkSubscriber) MsgReady() bool { return len(s.ch) > 0 }
func (s *NetworkSubscriber) RawHandle() any { return s.conn }

func (s *NetworkSubscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close(websocket.StatusNormalClosure, "")
	})
	return err
}
