package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/aurasense/companion/internal/dialogue"
	"github.com/aurasense/companion/internal/voice"
)

// WebSocketHandler carries onboarding turns over a WebSocket for voice
// clients. Each connection drives at most one session; audio frames are
// transcribed before entering the controller, and prompts are optionally
// synthesized back when a synthesizer is configured.
type WebSocketHandler struct {
	controller    *dialogue.Controller
	transcriber   voice.Transcriber
	synthesizer   voice.Synthesizer
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler. transcriber and
// synthesizer may be nil; audio frames are then rejected and responses stay
// text-only.
func NewWebSocketHandler(controller *dialogue.Controller, transcriber voice.Transcriber, synthesizer voice.Synthesizer, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		controller:    controller,
		transcriber:   transcriber,
		synthesizer:   synthesizer,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsInbound is a client frame. Type is one of start, text, audio, stop, ping.
type wsInbound struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Audio     string `json:"audio,omitempty"` // base64-encoded clip
}

type wsOutbound struct {
	Type       string   `json:"type"`
	SessionID  string   `json:"session_id,omitempty"`
	Message    string   `json:"message,omitempty"`
	State      string   `json:"state,omitempty"`
	Completion float64  `json:"completion"`
	Accepted   []string `json:"accepted_fields,omitempty"`
	Audio      string   `json:"audio,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.readLoop(ctx, ws)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("websocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn) {
	// The session bound to this connection, set by the start frame.
	var sessionID string

	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("websocket closed by client")
			} else if ctx.Err() == nil {
				slog.Warn("websocket read error", "error", err)
			}
			return
		}

		var msg wsInbound
		if err := json.Unmarshal(message, &msg); err != nil {
			h.writeError(ctx, ws, "invalid_frame")
			continue
		}

		switch msg.Type {
		case "ping":
			h.write(ctx, ws, wsOutbound{Type: "pong"})

		case "start":
			resp, err := h.controller.Start(ctx, msg.UserID)
			if err != nil {
				h.writeLifecycleError(ctx, ws, err)
				continue
			}
			sessionID = resp.SessionID
			h.writeTurn(ctx, ws, "prompt", resp)

		case "text":
			id := msg.SessionID
			if id == "" {
				id = sessionID
			}
			h.submit(ctx, ws, id, msg.Text)

		case "audio":
			if h.transcriber == nil {
				h.writeError(ctx, ws, "voice_not_configured")
				continue
			}
			clip, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				h.writeError(ctx, ws, "invalid_audio_encoding")
				continue
			}
			text, err := h.transcriber.Transcribe(ctx, clip)
			if err != nil {
				var terr *voice.TranscriptionError
				if errors.As(err, &terr) {
					slog.Warn("transcription failed", "reason", terr.Reason)
					h.writeError(ctx, ws, "transcription_failed")
					continue
				}
				h.writeError(ctx, ws, "transcription_failed")
				continue
			}
			id := msg.SessionID
			if id == "" {
				id = sessionID
			}
			h.submit(ctx, ws, id, text)

		case "stop":
			id := msg.SessionID
			if id == "" {
				id = sessionID
			}
			handoff, err := h.controller.Stop(ctx, id)
			if err != nil {
				h.writeLifecycleError(ctx, ws, err)
				continue
			}
			h.write(ctx, ws, wsOutbound{
				Type:      "handoff",
				SessionID: handoff.SessionID,
				Message:   handoff.Message,
				State:     string(handoff.State),
			})
			return

		default:
			h.writeError(ctx, ws, "unknown_frame_type")
		}
	}
}

func (h *WebSocketHandler) submit(ctx context.Context, ws *websocket.Conn, sessionID, text string) {
	if sessionID == "" {
		h.writeError(ctx, ws, "no_session")
		return
	}
	resp, err := h.controller.Submit(ctx, sessionID, text)
	if err != nil {
		h.writeLifecycleError(ctx, ws, err)
		return
	}
	h.writeTurn(ctx, ws, "turn", resp)
}

func (h *WebSocketHandler) writeTurn(ctx context.Context, ws *websocket.Conn, frameType string, resp *dialogue.TurnResponse) {
	out := wsOutbound{
		Type:       frameType,
		SessionID:  resp.SessionID,
		Message:    resp.Message,
		State:      string(resp.State),
		Completion: resp.Completion,
		Accepted:   resp.Accepted,
	}
	if h.synthesizer != nil {
		audio, err := h.synthesizer.Synthesize(ctx, resp.Message, "")
		if err != nil {
			slog.Warn("prompt synthesis failed, sending text only", "error", err)
		} else {
			out.Audio = base64.StdEncoding.EncodeToString(audio)
		}
	}
	h.write(ctx, ws, out)
}

func (h *WebSocketHandler) writeLifecycleError(ctx context.Context, ws *websocket.Conn, err error) {
	slog.Warn("websocket turn rejected", "error", err)
	h.writeError(ctx, ws, err.Error())
}

func (h *WebSocketHandler) writeError(ctx context.Context, ws *websocket.Conn, message string) {
	h.write(ctx, ws, wsOutbound{Type: "error", Error: message})
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, v wsOutbound) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal websocket frame", "error", err)
		return
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("websocket write error", "error", err)
	}
}
