package swarm_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	gws "github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// fakeQuiz is a minimal in-process quiz server speaking the session
// protocol: it starts the quiz once the expected number of players
// joined, scores submissions against the current question, advances on
// request_next_question, and finishes with quiz_completed + quiz_ended.
type fakeQuiz struct {
	t         *testing.T
	questions []fakeQuestion
	expect    int // players to wait for before starting
	dropAll   bool // close every connection instead of starting

	mu      sync.Mutex
	clients []*fakeClient
	joined  int
	current int
	sent    map[int]bool
	subs    map[int][]int // question index -> submitted answers
	done    bool

	srv *httptest.Server
}

type fakeQuestion struct {
	correct int
	options int
	limit   float64
}

type fakeClient struct {
	conn    *gws.Conn
	writeMu sync.Mutex
	dead    bool
	score   int
}

func newFakeQuiz(t *testing.T, expect int, questions ...fakeQuestion) *fakeQuiz {
	t.Helper()
	f := &fakeQuiz{
		t:         t,
		questions: questions,
		expect:    expect,
		current:   -1,
		sent:      make(map[int]bool),
		subs:      make(map[int][]int),
	}
	upgrader := gws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.serve(conn)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeQuiz) URL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeQuiz) serve(conn *gws.Conn) {
	client := &fakeClient{conn: conn}
	f.mu.Lock()
	f.clients = append(f.clients, client)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		client.dead = true
		f.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch gjson.GetBytes(data, "type").String() {
		case "join":
			f.handleJoin(client)
		case "submit_answer":
			f.handleSubmit(client, int(gjson.GetBytes(data, "payload.answer").Int()))
		case "request_next_question":
			f.handleNext()
		case "ping":
			f.send(client, map[string]any{"type": "pong"})
		}
	}
}

func (f *fakeQuiz) handleJoin(client *fakeClient) {
	f.mu.Lock()
	f.joined++
	joined := f.joined
	f.mu.Unlock()

	f.send(client, map[string]any{
		"type":    "session_state",
		"payload": map[string]any{"participant_count": joined},
	})

	if joined < f.expect {
		return
	}
	if f.dropAll {
		f.mu.Lock()
		clients := append([]*fakeClient(nil), f.clients...)
		f.mu.Unlock()
		for _, c := range clients {
			c.conn.Close()
		}
		return
	}
	f.broadcast(map[string]any{"type": "quiz_started"})
	f.PushQuestion(0)
}

func (f *fakeQuiz) handleSubmit(client *fakeClient, answer int) {
	f.mu.Lock()
	idx := f.current
	if idx < 0 || idx >= len(f.questions) || f.done {
		f.mu.Unlock()
		return
	}
	f.subs[idx] = append(f.subs[idx], answer)
	correct := answer == f.questions[idx].correct
	points := 0
	if correct {
		points = 100
		client.score += points
	}
	score := client.score
	liveCount := 0
	for _, c := range f.clients {
		if !c.dead {
			liveCount++
		}
	}
	allIn := len(f.subs[idx]) >= liveCount
	last := idx == len(f.questions)-1
	f.mu.Unlock()

	f.send(client, map[string]any{
		"type": "answer_result",
		"payload": map[string]any{
			"is_correct":      correct,
			"points":          points,
			"new_total_score": score,
		},
	})

	if allIn && last {
		f.finish()
	}
}

func (f *fakeQuiz) handleNext() {
	f.mu.Lock()
	next := f.current + 1
	if next >= len(f.questions) || f.sent[next] || f.done {
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.PushQuestion(next)
}

// PushQuestion broadcasts question i to every live client, regardless
// of whether earlier answers are still pending.
func (f *fakeQuiz) PushQuestion(i int) {
	f.mu.Lock()
	if f.sent[i] {
		f.mu.Unlock()
		return
	}
	f.sent[i] = true
	f.current = i
	q := f.questions[i]
	f.mu.Unlock()

	options := make([]string, q.options)
	for j := range options {
		options[j] = fmt.Sprintf("option %d", j)
	}
	f.broadcast(map[string]any{
		"type": "question",
		"payload": map[string]any{
			"index": i,
			"total": len(f.questions),
			"question": map[string]any{
				"question":           fmt.Sprintf("question %d", i),
				"type":               "singleMcq",
				"options":            options,
				"correctAnswerIndex": q.correct,
				"timeLimit":          q.limit,
			},
		},
	})
}

func (f *fakeQuiz) finish() {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	clients := append([]*fakeClient(nil), f.clients...)
	f.mu.Unlock()

	for _, c := range clients {
		f.send(c, map[string]any{
			"type":    "quiz_completed",
			"payload": map[string]any{"final_score": c.score},
		})
	}
	f.broadcast(map[string]any{
		"type":    "leaderboard_update",
		"payload": map[string]any{"leaderboard": []any{}},
	})
	f.broadcast(map[string]any{"type": "quiz_ended", "payload": map[string]any{}})
}

func (f *fakeQuiz) broadcast(msg map[string]any) {
	f.mu.Lock()
	clients := append([]*fakeClient(nil), f.clients...)
	f.mu.Unlock()
	for _, c := range clients {
		f.send(c, msg)
	}
}

func (f *fakeQuiz) send(client *fakeClient, msg map[string]any) {
	data, err := json.Marshal(msg)
	if err != nil {
		f.t.Errorf("marshal %v: %v", msg, err)
		return
	}
	client.writeMu.Lock()
	defer client.writeMu.Unlock()
	_ = client.conn.WriteMessage(gws.TextMessage, data)
}

// Submissions returns the answers received for question i.
func (f *fakeQuiz) Submissions(i int) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.subs[i]...)
}

// CurrentIndex returns the last question index broadcast, or -1.
func (f *fakeQuiz) CurrentIndex() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}
