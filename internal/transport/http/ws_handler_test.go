package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

func TestWebSocketAttemptFlow(t *testing.T) {
	service, results := newTestService()
	server := httptest.NewServer(NewRouter(service))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?quizId=quiz-1&userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect started event first.
	started := readUntil(conn, t, "started")
	var startedBody struct {
		Attempt domain.AttemptSnapshot `json:"attempt"`
		Quiz    domain.Quiz            `json:"quiz"`
	}
	if err := json.Unmarshal(started, &startedBody); err != nil {
		t.Fatalf("decode started: %v", err)
	}
	if startedBody.Attempt.State != domain.AttemptInProgress {
		t.Fatalf("expected in_progress, got %s", startedBody.Attempt.State)
	}
	for _, a := range startedBody.Quiz.Questions[0].Answers {
		if a.Correct {
			t.Fatalf("answer key leaked to client: %+v", a)
		}
	}

	send(conn, t, "select", map[string]any{"questionId": "q1", "answerId": "o2"})
	send(conn, t, "submit", map[string]any{"confirm": false})
	confirm := readUntil(conn, t, "confirm")
	var confirmBody struct {
		Unanswered []string `json:"unanswered"`
	}
	_ = json.Unmarshal(confirm, &confirmBody)
	if len(confirmBody.Unanswered) != 1 || confirmBody.Unanswered[0] != "q2" {
		t.Fatalf("expected q2 unanswered, got %v", confirmBody.Unanswered)
	}

	send(conn, t, "submit", map[string]any{"confirm": true})
	raw := readUntil(conn, t, "result")
	var ev domain.AttemptEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if ev.Result == nil || ev.Result.CorrectAnswers != 1 || ev.Result.ScorePercentage != 50 || !ev.Result.Passed {
		t.Fatalf("unexpected result %+v", ev.Result)
	}

	if _, err := results.GetResult(context.Background(), ev.Result.AttemptID); err != nil {
		t.Fatalf("expected persisted result: %v", err)
	}
}

func TestWebSocketRejectsBadInput(t *testing.T) {
	service, _ := newTestService()
	server := httptest.NewServer(NewRouter(service))
	defer server.Close()

	resp, err := http.Get(server.URL + "/ws?quizId=quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	u := "ws" + server.URL[len("http"):] + "/ws?quizId=quiz-1&userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readUntil(conn, t, "started")

	send(conn, t, "select", map[string]any{"questionId": "q1", "answerId": "nope"})
	body := readUntil(conn, t, "error")
	var e errorPayload
	_ = json.Unmarshal(body, &e)
	if e.Message != domain.ErrOptionNotFound.Error() {
		t.Fatalf("expected option error, got %q", e.Message)
	}
}

func send(conn *websocket.Conn, t *testing.T, typ string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips messages until one of type expect arrives and returns its payload.
func readUntil(conn *websocket.Conn, t *testing.T, expect string) json.RawMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", expect, err)
		}
		if msg.Type == expect {
			return msg.Payload
		}
	}
	t.Fatalf("no %s message received", expect)
	return nil
}

func newTestService() (*app.AttemptService, *memory.ResultStore) {
	results := memory.NewResultStore()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuiz()), time.Minute)
	return app.NewAttemptService(memory.NewAttemptStore(), quizRepo, results), results
}

func sampleQuiz() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:                "quiz-1",
			Title:             "Arithmetic",
			TimeLimitMinutes:  5,
			PassingPercentage: 50,
			Questions: []domain.Question{
				{
					ID:     "q1",
					Type:   domain.QuestionSingleChoice,
					Prompt: "What is 2 + 2?",
					Answers: []domain.Answer{
						{ID: "o1", Text: "3", Order: 0},
						{ID: "o2", Text: "4", Correct: true, Order: 1},
						{ID: "o3", Text: "5", Order: 2},
					},
				},
				{
					ID:     "q2",
					Type:   domain.QuestionMultiSelect,
					Prompt: "Which are even?",
					Answers: []domain.Answer{
						{ID: "o1", Text: "2", Correct: true, Order: 0},
						{ID: "o2", Text: "3", Order: 1},
						{ID: "o3", Text: "4", Correct: true, Order: 2},
					},
				},
			},
		},
	}
}
