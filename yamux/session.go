package yamux

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/barrystyle/libipfs-go/frame"
	"github.com/rs/zerolog/log"
)

// Session multiplexes many Streams over one underlying connection (the
// secio channel), per spec.md §3/§4.5. One reader goroutine demultiplexes
// inbound frames; writers contend on a single session-level write lock
// held only for the duration of one frame write (spec.md §5).
type Session struct {
	conn io.ReadWriteCloser
	role Role

	writeMu sync.Mutex

	mu      sync.Mutex
	streams map[uint32]*Stream
	nextID  uint32
	closed  bool
	closeErr error

	acceptCh chan *Stream
	closeCh  chan struct{}

	pingMu      sync.Mutex
	pingValue   uint32
	pingWaiting bool
	pingResult  chan time.Duration
	lastPingAt  time.Time

	goAwayFn func(code uint32)
}

// NewSession wraps conn (typically a *secio.Conn) in a yamux session and
// starts its demultiplexing reader and keepalive ping loop.
func NewSession(conn io.ReadWriteCloser, role Role) *Session {
	start := uint32(1)
	if role == Server {
		start = 2
	}
	s := &Session{
		conn:     conn,
		role:     role,
		streams:  make(map[uint32]*Stream),
		nextID:   start,
		acceptCh: make(chan *Stream, 16),
		closeCh:  make(chan struct{}),
	}
	go s.readLoop()
	go s.keepalive()
	return s
}

// OnGoAway registers a callback invoked when the remote sends GO-AWAY.
func (s *Session) OnGoAway(fn func(code uint32)) {
	s.mu.Lock()
	s.goAwayFn = fn
	s.mu.Unlock()
}

// Open allocates a new stream with the next id of this session's parity
// and drives it through inited -> syn-sent -> established.
func (s *Session) Open() (*Stream, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if len(s.streams) >= acceptBacklog {
		s.mu.Unlock()
		return nil, ErrBacklogFull
	}
	id := s.nextID
	s.nextID += 2
	st := newStream(s, id, StreamSynSent)
	s.streams[id] = st
	s.mu.Unlock()

	if err := s.writeFrame(frame.Frame{Type: frame.WindowUpdate, Flags: frame.SYN, StreamID: id}, nil); err != nil {
		return nil, err
	}

	for {
		st.mu.Lock()
		state := st.state
		ch := st.notifyCh
		closed := st.closed
		closeErr := st.closeErr
		st.mu.Unlock()
		if state == StreamEstablished {
			return st, nil
		}
		if closed {
			if closeErr == nil {
				closeErr = ErrStreamClosed
			}
			return nil, closeErr
		}
		<-ch
	}
}

// Accept blocks until a remote-initiated stream is established, or the
// session closes.
func (s *Session) Accept() (*Stream, error) {
	select {
	case st, ok := <-s.acceptCh:
		if !ok {
			return nil, ErrSessionClosed
		}
		return st, nil
	case <-s.closeCh:
		return nil, ErrSessionClosed
	}
}

// acceptBacklog bounds the number of concurrently live streams per session.
const acceptBacklog = 256

// Ping sends a session-level ping and returns the round-trip time, erroring
// if no pong arrives within pongTimeout.
func (s *Session) Ping() (time.Duration, error) {
	s.pingMu.Lock()
	if s.pingWaiting {
		s.pingMu.Unlock()
		return 0, ErrProtocol
	}
	value := rand.Uint32()
	result := make(chan time.Duration, 1)
	s.pingValue = value
	s.pingWaiting = true
	s.pingResult = result
	s.lastPingAt = time.Now()
	s.pingMu.Unlock()

	if err := s.writeFrame(frame.Frame{Type: frame.Ping, Flags: frame.SYN, Length: value}, nil); err != nil {
		return 0, err
	}

	select {
	case d := <-result:
		return d, nil
	case <-time.After(pongTimeout):
		s.pingMu.Lock()
		s.pingWaiting = false
		s.pingMu.Unlock()
		return 0, ErrTimeout
	case <-s.closeCh:
		return 0, ErrSessionClosed
	}
}

// Close sends a normal GO-AWAY and tears down every live stream.
func (s *Session) Close() error {
	return s.closeWithCode(GoAwayNormal, nil)
}

func (s *Session) closeWithCode(code uint32, err error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.closeErr = err
	streams := make([]*Stream, 0, len(s.streams))
	for _, st := range s.streams {
		streams = append(streams, st)
	}
	s.streams = make(map[uint32]*Stream)
	s.mu.Unlock()

	for _, st := range streams {
		st.onSessionClosed(err)
	}
	close(s.closeCh)
	close(s.acceptCh)

	werr := s.writeFrame(frame.Frame{Type: frame.GoAway, Length: code}, nil)
	cerr := s.conn.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

func (s *Session) removeStream(id uint32) {
	s.mu.Lock()
	delete(s.streams, id)
	s.mu.Unlock()
}

// writeFrame serializes and writes one frame header plus payload, holding
// the session write lock only for that single write (spec.md §5).
func (s *Session) writeFrame(f frame.Frame, payload []byte) error {
	if f.Type == frame.Data {
		f.Length = uint32(len(payload))
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(frame.Encode(f)); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := s.conn.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) keepalive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := s.Ping(); err != nil {
				log.Debug().Err(err).Msg("yamux: keepalive ping failed, closing session")
				s.closeWithCode(GoAwayInternalError, err)
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// readLoop is the session's single demultiplexing reader task.
func (s *Session) readLoop() {
	header := make([]byte, frame.Size)
	for {
		if _, err := io.ReadFull(s.conn, header); err != nil {
			s.closeWithCode(GoAwayInternalError, err)
			return
		}
		f, err := frame.Decode(header)
		if err != nil {
			log.Error().Err(err).Msg("yamux: bad frame header")
			s.closeWithCode(GoAwayProtocolError, err)
			return
		}
		var payload []byte
		if f.Length > 0 && f.Type == frame.Data {
			payload = make([]byte, f.Length)
			if _, err := io.ReadFull(s.conn, payload); err != nil {
				s.closeWithCode(GoAwayInternalError, err)
				return
			}
		}
		if f.StreamID == 0 {
			s.handleSessionFrame(f)
			continue
		}
		s.handleStreamFrame(f, payload)
	}
}

func (s *Session) handleSessionFrame(f frame.Frame) {
	switch f.Type {
	case frame.Ping:
		if f.Flags&frame.SYN != 0 {
			s.writeFrame(frame.Frame{Type: frame.Ping, Flags: frame.ACK, Length: f.Length}, nil)
			return
		}
		if f.Flags&frame.ACK != 0 {
			s.pingMu.Lock()
			if s.pingWaiting && f.Length == s.pingValue {
				s.pingWaiting = false
				rtt := time.Since(s.lastPingAt)
				result := s.pingResult
				s.pingMu.Unlock()
				result <- rtt
				return
			}
			s.pingMu.Unlock()
		}
	case frame.GoAway:
		s.mu.Lock()
		fn := s.goAwayFn
		s.mu.Unlock()
		if fn != nil {
			fn(f.Length)
		}
		s.closeWithCode(f.Length, ErrSessionClosed)
	default:
		log.Debug().Str("frame", f.String()).Msg("yamux: unexpected session-level frame")
	}
}

func (s *Session) handleStreamFrame(f frame.Frame, payload []byte) {
	s.mu.Lock()
	st, ok := s.streams[f.StreamID]
	s.mu.Unlock()

	if !ok {
		if f.Flags&frame.SYN == 0 {
			log.Debug().Uint32("stream", f.StreamID).Msg("yamux: frame for unknown stream")
			return
		}
		if !s.validPeerInitiated(f.StreamID) {
			log.Error().Uint32("stream", f.StreamID).Msg("yamux: stream id parity violation")
			return
		}
		st = newStream(s, f.StreamID, StreamSynRecv)
		s.mu.Lock()
		s.streams[f.StreamID] = st
		s.mu.Unlock()

		s.writeFrame(frame.Frame{Type: frame.WindowUpdate, Flags: frame.ACK, StreamID: f.StreamID}, nil)
		st.mu.Lock()
		st.state = StreamEstablished
		st.notifyLocked()
		st.mu.Unlock()

		select {
		case s.acceptCh <- st:
		default:
			log.Error().Uint32("stream", f.StreamID).Msg("yamux: accept backlog full, dropping stream")
			st.onReset()
			return
		}
	}

	if f.Flags&frame.RST != 0 {
		st.onReset()
		return
	}
	if f.Flags&frame.ACK != 0 {
		st.onAck()
	}
	if f.Type == frame.WindowUpdate {
		st.onWindowUpdate(f.Length)
	}
	if len(payload) > 0 {
		st.onData(payload)
	}
	if f.Flags&frame.FIN != 0 {
		st.onFin()
	}
}

// validPeerInitiated enforces the odd/even stream-id parity invariant of
// spec.md §3: the remote's ids must carry the opposite parity from ours.
func (s *Session) validPeerInitiated(id uint32) bool {
	remoteIsClient := s.role == Server
	if remoteIsClient {
		return id%2 == 1
	}
	return id%2 == 0
}
