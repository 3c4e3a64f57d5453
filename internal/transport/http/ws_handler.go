package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

type WSHandler struct {
	service  *app.AttemptService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	QuestionID string `json:"questionId"`
	AnswerID   string `json:"answerId"`
}

// navigatePayload moves by direction ("next"/"prev") or to an absolute index.
type navigatePayload struct {
	Direction string `json:"direction"`
	Index     *int   `json:"index"`
}

type submitPayload struct {
	Confirm bool `json:"confirm"`
}

type startedPayload struct {
	Attempt domain.AttemptSnapshot `json:"attempt"`
	Quiz    domain.Quiz            `json:"quiz"`
}

type confirmPayload struct {
	Unanswered []string `json:"unanswered"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and drives one attempt per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	attempt, err := h.service.Start(r.Context(), quizID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	// Leaving before submission abandons the attempt so its deadline cannot fire later.
	defer func() {
		if !attempt.State().Terminal() {
			h.service.Abandon(r.Context(), attempt.ID())
		}
	}()

	events, cancel := attempt.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "started", Payload: startedPayload{
		Attempt: attempt.Snapshot(),
		Quiz:    attempt.Quiz().CandidateView(),
	}}

	// Deadline expiry arrives here as a result event, without any client message.
	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				msg := outboundMessage[any]{Type: string(ev.Type), Payload: ev.Snapshot}
				if ev.Type == domain.EventResult {
					msg.Payload = ev
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if reply, ok := h.handle(r, attempt, inbound); ok {
			send <- reply
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

// handle applies one client message. State changes reach the client through the
// subscription, so only errors and confirmation prompts are replied directly.
func (h *WSHandler) handle(r *http.Request, attempt *app.Attempt, inbound inboundMessage) (outboundMessage[any], bool) {
	var err error
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid select payload"), true
		}
		_, err = attempt.Select(payload.QuestionID, payload.AnswerID)
	case "navigate":
		var payload navigatePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid navigate payload"), true
		}
		switch {
		case payload.Index != nil:
			_, err = attempt.GoTo(*payload.Index)
		case payload.Direction == "next":
			_, err = attempt.Next()
		case payload.Direction == "prev":
			_, err = attempt.Prev()
		default:
			return errorMessage("navigate needs index or direction"), true
		}
	case "submit":
		var payload submitPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				return errorMessage("invalid submit payload"), true
			}
		}
		_, err = h.service.Submit(r.Context(), attempt.ID(), payload.Confirm)
		if errors.Is(err, domain.ErrConfirmationRequired) {
			return outboundMessage[any]{Type: "confirm", Payload: confirmPayload{Unanswered: attempt.Unanswered()}}, true
		}
	default:
		return errorMessage("unsupported message type"), true
	}
	if err != nil {
		return errorMessage(err.Error()), true
	}
	return outboundMessage[any]{}, false
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
