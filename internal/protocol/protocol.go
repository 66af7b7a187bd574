// Package protocol implements the quiz session wire protocol: a JSON
// envelope of {"type": ..., "payload": {...}} exchanged over a persistent
// WebSocket connection.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Kind identifies a message type on the wire.
type Kind string

// Inbound message kinds (server -> client).
const (
	KindSessionState  Kind = "session_state"
	KindSessionUpdate Kind = "session_update"
	KindQuizStarted   Kind = "quiz_started"
	KindQuestion      Kind = "question"
	KindAnswerResult  Kind = "answer_result"
	KindLeaderboard   Kind = "leaderboard_update"
	KindQuizCompleted Kind = "quiz_completed"
	KindQuizEnded     Kind = "quiz_ended"
	KindError         Kind = "error"
	KindPong          Kind = "pong"
)

// Outbound message kinds (client -> server).
const (
	KindJoin         Kind = "join"
	KindSubmitAnswer Kind = "submit_answer"
	KindRequestNext  Kind = "request_next_question"
	KindPing         Kind = "ping"
)

// Envelope is the outer frame shared by every message.
type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is a decoded inbound message.
type Event interface {
	Kind() Kind
}

// Question announces a new question to answer. Index is zero-based and
// doubles as the question identifier within a session.
type Question struct {
	Index int          `json:"index"`
	Total int          `json:"total"`
	Body  QuestionBody `json:"question"`
}

// QuestionBody carries the question content with normalized field names.
type QuestionBody struct {
	Text               string   `json:"question"`
	Type               string   `json:"type"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	TimeLimitSeconds   float64  `json:"timeLimit"`
}

func (Question) Kind() Kind { return KindQuestion }

// TimeLimit returns the server's per-question window, or zero if the
// server did not supply one.
func (q Question) TimeLimit() time.Duration {
	if q.Body.TimeLimitSeconds <= 0 {
		return 0
	}
	return time.Duration(q.Body.TimeLimitSeconds * float64(time.Second))
}

// AnswerResult reports scoring for a submitted answer.
type AnswerResult struct {
	IsCorrect     bool `json:"is_correct"`
	Points        int  `json:"points"`
	NewTotalScore int  `json:"new_total_score"`
}

func (AnswerResult) Kind() Kind { return KindAnswerResult }

// SessionState is the server's acknowledgement after joining.
type SessionState struct {
	ParticipantCount int `json:"participant_count"`
}

func (SessionState) Kind() Kind { return KindSessionState }

// SessionUpdate announces participant roster changes mid-session.
type SessionUpdate struct {
	ParticipantCount int `json:"participant_count"`
}

func (SessionUpdate) Kind() Kind { return KindSessionUpdate }

// LeaderboardEntry is one row of a leaderboard broadcast.
type LeaderboardEntry struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Leaderboard carries the current standings.
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"leaderboard"`
}

func (Leaderboard) Kind() Kind { return KindLeaderboard }

// QuizStarted signals that the host started the quiz.
type QuizStarted struct{}

func (QuizStarted) Kind() Kind { return KindQuizStarted }

// QuizCompleted signals that this participant finished all questions.
type QuizCompleted struct {
	FinalScore int `json:"final_score"`
}

func (QuizCompleted) Kind() Kind { return KindQuizCompleted }

// QuizEnded signals that the session is over for everyone.
type QuizEnded struct{}

func (QuizEnded) Kind() Kind { return KindQuizEnded }

// ServerError is a non-fatal error report from the server.
type ServerError struct {
	Message string `json:"message"`
}

func (ServerError) Kind() Kind { return KindError }

// AlreadyAnswered reports whether a server error is the benign duplicate
// submission rejection, which bots tolerate silently.
func (e ServerError) AlreadyAnswered() bool {
	return strings.Contains(e.Message, "Already answered")
}

// Pong is the keepalive response.
type Pong struct{}

func (Pong) Kind() Kind { return KindPong }

// Decode parses an inbound frame into a typed Event. Unknown message
// kinds return an UnknownKindError so callers can skip them without
// treating the connection as broken.
func Decode(data []byte) (Event, error) {
	kind := gjson.GetBytes(data, "type")
	if !kind.Exists() {
		return nil, fmt.Errorf("protocol: frame missing type: %.60s", data)
	}

	payload := []byte(gjson.GetBytes(data, "payload").Raw)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	switch Kind(kind.String()) {
	case KindQuestion:
		var ev Question
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("protocol: decode question: %w", err)
		}
		return ev, nil
	case KindAnswerResult:
		var ev AnswerResult
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("protocol: decode answer_result: %w", err)
		}
		return ev, nil
	case KindSessionState:
		var ev SessionState
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("protocol: decode session_state: %w", err)
		}
		return ev, nil
	case KindSessionUpdate:
		var ev SessionUpdate
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("protocol: decode session_update: %w", err)
		}
		return ev, nil
	case KindLeaderboard:
		var ev Leaderboard
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("protocol: decode leaderboard_update: %w", err)
		}
		return ev, nil
	case KindQuizStarted:
		return QuizStarted{}, nil
	case KindQuizCompleted:
		var ev QuizCompleted
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("protocol: decode quiz_completed: %w", err)
		}
		return ev, nil
	case KindQuizEnded:
		return QuizEnded{}, nil
	case KindError:
		var ev ServerError
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("protocol: decode error payload: %w", err)
		}
		return ev, nil
	case KindPong:
		return Pong{}, nil
	default:
		return nil, UnknownKindError{Type: kind.String()}
	}
}

// UnknownKindError marks a frame whose type the client does not handle.
type UnknownKindError struct {
	Type string
}

func (e UnknownKindError) Error() string {
	return fmt.Sprintf("protocol: unknown message kind %q", e.Type)
}

func encode(kind Kind, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode %s payload: %w", kind, err)
		}
		raw = data
	}
	data, err := json.Marshal(Envelope{Type: kind, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", kind, err)
	}
	return data, nil
}

// Join builds the join-request frame sent right after connecting.
func Join(username string) ([]byte, error) {
	return encode(KindJoin, map[string]string{"username": username})
}

// SubmitAnswer builds an answer submission. thinkTime is reported to the
// server in seconds, matching the field the scorer reads.
func SubmitAnswer(answer int, thinkTime time.Duration) ([]byte, error) {
	return encode(KindSubmitAnswer, map[string]any{
		"answer":    answer,
		"timestamp": thinkTime.Seconds(),
	})
}

// RequestNext builds the next-question request used to advance a
// host-less session.
func RequestNext() ([]byte, error) {
	return encode(KindRequestNext, map[string]any{})
}

// Ping builds a keepalive frame.
func Ping() ([]byte, error) {
	return encode(KindPing, nil)
}
