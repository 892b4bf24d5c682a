package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// WSHandler streams heartbeats for the caller's active session so clients can
// keep their countdown in sync with the server clock.
type WSHandler struct {
	service  *app.SessionService
	interval time.Duration
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService, interval time.Duration, log logrus.FieldLogger) *WSHandler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &WSHandler{
		service:  service,
		interval: interval,
		log:      log,
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

type extendPayload struct {
	AdditionalMinutes int `json:"additional_minutes"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// ServeWS upgrades the request and runs the heartbeat loop until the session
// ends or the client disconnects. It expects RequireUser in front of it.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFrom(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	report, err := h.service.Status(ctx, userID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(describe(err)))
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	tickerDone := make(chan struct{})

	emit := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).Debug("ws write error")
				return
			}
		}
	}()

	emit(outboundMessage[any]{Type: "status", Payload: report})
	live := report.Valid

	go func() {
		defer close(tickerDone)
		if !live {
			emit(outboundMessage[any]{Type: "expired", Payload: report})
			return
		}
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				report, err := h.service.Heartbeat(ctx, userID)
				if err != nil {
					// finished through another request
					emit(errorMessage(describe(err)))
					return
				}
				if !emit(outboundMessage[any]{Type: "heartbeat", Payload: report}) {
					return
				}
				if !report.Valid {
					emit(outboundMessage[any]{Type: "expired", Payload: report})
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
		if !emit(h.handleInbound(ctx, userID, inbound)) {
			break
		}
	}

	close(closeSignals)
	cancel()
	<-tickerDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handleInbound(ctx context.Context, userID int64, inbound inboundMessage) outboundMessage[any] {
	switch inbound.Type {
	case "heartbeat":
		report, err := h.service.Heartbeat(ctx, userID)
		if err != nil {
			return errorMessage(describe(err))
		}
		return outboundMessage[any]{Type: "heartbeat", Payload: report}
	case "extend":
		payload := extendPayload{AdditionalMinutes: domain.DefaultExtensionMinutes}
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				return errorMessage("invalid extend payload")
			}
		}
		session, err := h.service.Extend(ctx, userID, payload.AdditionalMinutes)
		if err != nil {
			return errorMessage(describe(err))
		}
		return outboundMessage[any]{Type: "extended", Payload: session.Snapshot(h.service.Now())}
	case "abandon":
		session, err := h.service.Abandon(ctx, userID)
		if err != nil {
			return errorMessage(describe(err))
		}
		return outboundMessage[any]{Type: "abandoned", Payload: session.Snapshot(h.service.Now())}
	default:
		return errorMessage("unsupported message type")
	}
}

func describe(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, domain.ErrSessionNotFound):
		return "No active quiz session"
	case errors.Is(err, domain.ErrSessionExpired):
		return "Quiz time has expired"
	case errors.Is(err, domain.ErrSessionConflict):
		return "Quiz session was changed by another request, please retry"
	default:
		return "An internal server error occurred"
	}
}
