package yamux

import (
	"sync"
	"time"

	"github.com/barrystyle/libipfs-go/frame"
)

// Stream is one multiplexed byte channel within a Session, carrying the
// per-stream state machine and flow-control window of spec.md §4.5/§3.
type Stream struct {
	id      uint32
	session *Session

	mu           sync.Mutex
	state        StreamState
	sendWindow   uint32
	recvWindow   uint32
	recvBuf      []byte
	notifyCh     chan struct{}
	closed       bool
	closeErr     error
	sentFin      bool
	recvFin      bool
	readDeadline time.Time
	writeDeadline time.Time
}

func newStream(session *Session, id uint32, state StreamState) *Stream {
	return &Stream{
		id:         id,
		session:    session,
		state:      state,
		sendWindow: DefaultWindowSize,
		recvWindow: DefaultWindowSize,
		notifyCh:   make(chan struct{}),
	}
}

// ID returns the stream's 32-bit identifier.
func (s *Stream) ID() uint32 { return s.id }

// State returns the stream's current lifecycle state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Stream) notifyLocked() {
	close(s.notifyCh)
	s.notifyCh = make(chan struct{})
}

// SetReadDeadline bounds how long Read may block waiting for inbound data.
func (s *Stream) SetReadDeadline(t time.Time) error {
	s.mu.Lock()
	s.readDeadline = t
	s.mu.Unlock()
	return nil
}

// SetWriteDeadline bounds how long Write may block waiting for send window.
func (s *Stream) SetWriteDeadline(t time.Time) error {
	s.mu.Lock()
	s.writeDeadline = t
	s.mu.Unlock()
	return nil
}

// Read returns buffered inbound payload, blocking until data, FIN, RST, or
// the read deadline arrives.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	for len(s.recvBuf) == 0 && !s.closed && !s.recvFin {
		ch := s.notifyCh
		deadline := s.readDeadline
		s.mu.Unlock()
		if !waitOrDeadline(ch, deadline) {
			return 0, ErrTimeout
		}
		s.mu.Lock()
	}
	if len(s.recvBuf) == 0 {
		err := s.closeErr
		if err == nil {
			err = ErrStreamClosed
		}
		s.mu.Unlock()
		return 0, err
	}
	n := copy(p, s.recvBuf)
	s.recvBuf = s.recvBuf[n:]
	s.recvWindow += uint32(n)
	needUpdate := s.recvWindow <= DefaultWindowSize/2
	var delta uint32
	if needUpdate {
		delta = DefaultWindowSize - s.recvWindow
		s.recvWindow = DefaultWindowSize
	}
	s.mu.Unlock()

	if needUpdate {
		s.session.writeFrame(frame.Frame{Type: frame.WindowUpdate, StreamID: s.id, Length: delta}, nil)
	}
	return n, nil
}

// Write segments p into data frames no larger than the remote's advertised
// window, blocking when the window is exhausted.
func (s *Stream) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		s.mu.Lock()
		for s.sendWindow == 0 && !s.closed {
			ch := s.notifyCh
			deadline := s.writeDeadline
			s.mu.Unlock()
			if !waitOrDeadline(ch, deadline) {
				return total, ErrTimeout
			}
			s.mu.Lock()
		}
		if s.closed {
			err := s.closeErr
			if err == nil {
				err = ErrStreamClosed
			}
			s.mu.Unlock()
			return total, err
		}
		chunk := p[total:]
		if uint32(len(chunk)) > s.sendWindow {
			chunk = chunk[:s.sendWindow]
		}
		s.sendWindow -= uint32(len(chunk))
		s.mu.Unlock()

		if err := s.session.writeFrame(frame.Frame{Type: frame.Data, StreamID: s.id, Length: uint32(len(chunk))}, chunk); err != nil {
			return total, err
		}
		total += len(chunk)
	}
	return total, nil
}

// Close sends FIN (if not already sent) and transitions the stream to closing.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed || s.sentFin {
		s.mu.Unlock()
		return nil
	}
	s.sentFin = true
	if s.state == StreamEstablished {
		s.state = StreamClosing
	} else {
		s.state = StreamClosed
		s.closed = true
	}
	finished := s.closed
	s.notifyLocked()
	s.mu.Unlock()

	err := s.session.writeFrame(frame.Frame{Type: frame.WindowUpdate, Flags: frame.FIN, StreamID: s.id}, nil)
	if finished {
		s.session.removeStream(s.id)
	}
	return err
}

// onData appends inbound payload and applies it against the receive window.
func (s *Stream) onData(payload []byte) {
	s.mu.Lock()
	s.recvBuf = append(s.recvBuf, payload...)
	if uint32(len(payload)) <= s.recvWindow {
		s.recvWindow -= uint32(len(payload))
	} else {
		s.recvWindow = 0
	}
	s.notifyLocked()
	s.mu.Unlock()
}

// onWindowUpdate credits the stream's send window.
func (s *Stream) onWindowUpdate(delta uint32) {
	s.mu.Lock()
	s.sendWindow += delta
	s.notifyLocked()
	s.mu.Unlock()
}

// onAck transitions a syn-sent stream to established.
func (s *Stream) onAck() {
	s.mu.Lock()
	if s.state == StreamSynSent {
		s.state = StreamEstablished
	}
	s.notifyLocked()
	s.mu.Unlock()
}

// onFin marks the stream half-closed from the remote side.
func (s *Stream) onFin() {
	s.mu.Lock()
	s.recvFin = true
	if s.state == StreamClosing || s.state == StreamEstablished || s.state == StreamSynRecv {
		s.state = StreamClosed
		s.closed = true
	}
	s.notifyLocked()
	finished := s.closed
	s.mu.Unlock()
	if finished {
		s.session.removeStream(s.id)
	}
}

// onReset forces the stream closed with ErrStreamReset.
func (s *Stream) onReset() {
	s.mu.Lock()
	s.state = StreamClosed
	s.closed = true
	s.closeErr = ErrStreamReset
	s.notifyLocked()
	s.mu.Unlock()
	s.session.removeStream(s.id)
}

// onSessionClosed forces the stream closed because its parent session tore down.
func (s *Stream) onSessionClosed(err error) {
	s.mu.Lock()
	if !s.closed {
		s.state = StreamClosed
		s.closed = true
		s.closeErr = err
		s.notifyLocked()
	}
	s.mu.Unlock()
}

// waitOrDeadline blocks on ch until it fires or deadline passes (zero
// deadline means wait forever). Returns false on timeout.
func waitOrDeadline(ch <-chan struct{}, deadline time.Time) bool {
	if deadline.IsZero() {
		<-ch
		return true
	}
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}
