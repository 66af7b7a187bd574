// Package bot implements a single simulated quiz participant: its
// persona, its pure answer strategy, and the session state machine that
// drives one persistent connection through a live quiz.
package bot

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/queez/quizbots/internal/protocol"
)

// Status is a session's lifecycle state. Transitions only move forward:
// connecting -> connected <-> answering -> disconnected | errored.
// Terminal states are never left.
type Status int32

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusAnswering
	StatusDisconnected
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusAnswering:
		return "answering"
	case StatusDisconnected:
		return "disconnected"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether a session in this status is out of the run.
func (s Status) Terminal() bool {
	return s == StatusDisconnected || s == StatusErrored
}

// NoteKind classifies notifications a session sends its coordinator.
type NoteKind int

const (
	// NoteEvent forwards a decoded server event.
	NoteEvent NoteKind = iota
	// NoteAnswered signals that the answer for QuestionIndex went out.
	NoteAnswered
	// NoteClosed signals that the session left the run (disconnected or
	// errored); its read loop has stopped.
	NoteClosed
)

// Note is a notification from a session to its coordinator.
type Note struct {
	Bot           *Session
	Kind          NoteKind
	Event         protocol.Event // set for NoteEvent
	QuestionIndex int            // set for NoteAnswered
	ResultLatency time.Duration  // set for answer_result events
}

// Transport is the connection surface a session drives. *websocket.Conn
// implements it; tests substitute fakes.
type Transport interface {
	Connect(ctx context.Context) error
	Send(data []byte) error
	Receive(deadline time.Time) ([]byte, error)
	Close() error
}

// Config assembles a session.
type Config struct {
	ID        string
	Username  string
	Persona   Persona
	Transport Transport
	Rand      *rand.Rand
	Logf      func(format string, args ...any) // optional diagnostics sink
}

// Session is one simulated participant. All exported methods are safe
// for concurrent use; the session's state is mutated only by its own
// read loop, its answer timer, and coordinator calls, all serialized
// under one mutex.
type Session struct {
	id       string
	username string
	persona  Persona
	conn     Transport
	logf     func(string, ...any)

	done chan struct{} // closed by Shutdown; unblocks notify

	mu           sync.Mutex
	rng          *rand.Rand
	status       Status
	stopping     bool
	completed    bool
	lastErr      error
	score        int
	answered     int
	correct      int
	curIndex     int
	total        int
	pending      *time.Timer
	pendingIndex int
	submittedAt  time.Time
	notes        chan<- Note
}

// New creates an unconnected session.
func New(cfg Config) *Session {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Session{
		id:           cfg.ID,
		username:     cfg.Username,
		persona:      cfg.Persona,
		conn:         cfg.Transport,
		logf:         logf,
		done:         make(chan struct{}),
		rng:          cfg.Rand,
		status:       StatusConnecting,
		curIndex:     -1,
		pendingIndex: -1,
	}
}

func (s *Session) ID() string       { return s.id }
func (s *Session) Username() string { return s.username }
func (s *Session) Persona() Persona { return s.persona }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

func (s *Session) Answered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answered
}

func (s *Session) Correct() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.correct
}

func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Err returns the error that took the session out of the run, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// transition enforces forward-only movement. Callers hold s.mu.
func (s *Session) transition(to Status) bool {
	if s.status.Terminal() {
		return false
	}
	switch to {
	case StatusConnected:
		if s.status != StatusConnecting && s.status != StatusAnswering {
			return false
		}
	case StatusAnswering:
		if s.status != StatusConnected {
			return false
		}
	case StatusDisconnected, StatusErrored:
		// reachable from any live state
	default:
		return false
	}
	s.status = to
	return true
}

// Connect dials the server and sends the join request. A failure marks
// the session errored and is returned for the batcher's bookkeeping; it
// is never fatal to the run.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.conn.Connect(ctx); err != nil {
		s.fail(StatusErrored, ConnectError{Err: err})
		return ConnectError{Err: err}
	}

	s.mu.Lock()
	s.transition(StatusConnected)
	s.mu.Unlock()
	return nil
}

// Join announces the bot to the session.
func (s *Session) Join() error {
	frame, err := protocol.Join(s.username)
	if err != nil {
		return err
	}
	if err := s.conn.Send(frame); err != nil {
		s.fail(StatusErrored, ConnectError{Err: err})
		return ConnectError{Err: err}
	}
	return nil
}

// Start launches the read loop. Notes flow to the coordinator until the
// session leaves the run or Shutdown is called.
func (s *Session) Start(notes chan<- Note) {
	s.mu.Lock()
	s.notes = notes
	s.mu.Unlock()
	go s.readLoop()
}

func (s *Session) readLoop() {
	for {
		data, err := s.conn.Receive(time.Time{})
		if err != nil {
			s.mu.Lock()
			stopping := s.stopping
			s.mu.Unlock()
			if stopping {
				return
			}
			s.logf("bot %s: connection lost: %v", s.username, err)
			s.fail(StatusDisconnected, DisconnectError{Err: err})
			s.notify(Note{Bot: s, Kind: NoteClosed})
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			var unknown protocol.UnknownKindError
			if errors.As(err, &unknown) {
				// Kinds outside the bot's vocabulary are skipped, not fatal.
				continue
			}
			s.logf("bot %s: protocol error: %v", s.username, err)
			s.fail(StatusErrored, ProtocolError{Err: err})
			_ = s.conn.Close()
			s.notify(Note{Bot: s, Kind: NoteClosed})
			return
		}

		note := s.handleEvent(ev)
		if note != nil {
			s.notify(*note)
		}
	}
}

// handleEvent applies an inbound event to local state and builds the
// note to forward, if any.
func (s *Session) handleEvent(ev protocol.Event) *Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	note := &Note{Bot: s, Kind: NoteEvent, Event: ev}

	switch ev := ev.(type) {
	case protocol.Question:
		if ev.Total > 0 {
			s.total = ev.Total
		}
	case protocol.AnswerResult:
		s.score = ev.NewTotalScore
		if ev.IsCorrect {
			s.correct++
		}
		if !s.submittedAt.IsZero() {
			note.ResultLatency = time.Since(s.submittedAt)
			s.submittedAt = time.Time{}
		}
	case protocol.QuizCompleted, protocol.QuizEnded:
		s.completed = true
		s.cancelPendingLocked()
	case protocol.ServerError:
		if ev.AlreadyAnswered() {
			return nil
		}
		s.logf("bot %s: server error: %s", s.username, ev.Message)
	case protocol.Pong:
		return nil
	}

	return note
}

// AskQuestion runs the answer strategy for q and schedules the
// submission after the drawn think delay. If a prior question is still
// pending, its answer is discarded: the newest question wins.
func (s *Session) AskQuestion(q protocol.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() || s.completed {
		return
	}
	if q.Index <= s.curIndex {
		return // already seen
	}

	if s.pending != nil {
		s.logf("bot %s: question %d arrived, dropping stale answer for %d",
			s.username, q.Index, s.pendingIndex)
		s.cancelPendingLocked()
	}

	s.curIndex = q.Index
	decision := Decide(q, s.persona, s.rng)

	if s.status == StatusConnected {
		s.transition(StatusAnswering)
	}
	s.pendingIndex = q.Index
	s.pending = time.AfterFunc(decision.Delay, func() {
		s.submit(q.Index, decision)
	})
}

func (s *Session) submit(index int, d Decision) {
	s.mu.Lock()
	if s.pendingIndex != index || s.status != StatusAnswering {
		s.mu.Unlock()
		return // superseded or session left the run
	}
	s.pending = nil
	s.pendingIndex = -1
	s.mu.Unlock()

	frame, err := protocol.SubmitAnswer(d.Answer, d.Delay)
	if err != nil {
		s.logf("bot %s: encode answer: %v", s.username, err)
		return
	}
	if err := s.conn.Send(frame); err != nil {
		s.logf("bot %s: submit failed: %v", s.username, err)
		s.fail(StatusDisconnected, DisconnectError{Err: err})
		s.notify(Note{Bot: s, Kind: NoteClosed})
		return
	}

	s.mu.Lock()
	s.answered++
	s.submittedAt = time.Now()
	// A newer question may have been adopted while the send was in
	// flight; its timer still owns the answering state then.
	if s.pendingIndex == -1 {
		s.transition(StatusConnected)
	}
	s.mu.Unlock()

	s.notify(Note{Bot: s, Kind: NoteAnswered, QuestionIndex: index})
}

// CancelPending drops any scheduled answer without submitting it.
func (s *Session) CancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPendingLocked()
}

func (s *Session) cancelPendingLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.pendingIndex = -1
	if s.status == StatusAnswering {
		s.transition(StatusConnected)
	}
}

// RequestNext asks the server to advance to the next question.
func (s *Session) RequestNext() error {
	s.mu.Lock()
	live := !s.status.Terminal() && !s.completed
	s.mu.Unlock()
	if !live {
		return nil
	}

	frame, err := protocol.RequestNext()
	if err != nil {
		return err
	}
	return s.conn.Send(frame)
}

// Shutdown closes the connection deliberately at the end of a run. The
// session's final status is preserved: a completed bot does not count
// as disconnected just because the run tore it down.
func (s *Session) Shutdown() {
	s.mu.Lock()
	if !s.stopping {
		s.stopping = true
		close(s.done)
	}
	s.cancelPendingLocked()
	s.mu.Unlock()
	_ = s.conn.Close()
}

// fail moves the session to a terminal status and records why.
func (s *Session) fail(to Status, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return
	}
	s.cancelPendingLocked()
	s.transition(to)
	s.lastErr = err
}

// notify forwards a note to the coordinator. Once the coordinator has
// stopped consuming (after Shutdown) the send gives up instead of
// parking the read loop forever.
func (s *Session) notify(n Note) {
	s.mu.Lock()
	notes := s.notes
	s.mu.Unlock()
	if notes == nil {
		return
	}
	select {
	case notes <- n:
	case <-s.done:
	}
}
