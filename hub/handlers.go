package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Subscribers authenticate with a credential, not cookies, so any
	// origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterRoutes registers the subscriber endpoints.
func (h *Hub) RegisterRoutes(r chi.Router) {
	r.Get("/hub/events", h.handleSSE)
	r.Get("/hub/ws", h.handleWebSocket)
}

// authorizeRequest checks the subscribe key and credential of an attach
// request and returns the authorized claims and requested channels.
func (h *Hub) authorizeRequest(r *http.Request) (*Claims, []string, int, error) {
	query := r.URL.Query()
	if query.Get("subscribeKey") != h.subscribeKey {
		return nil, nil, http.StatusForbidden, ErrSubscribeKeyMismatch
	}

	var channels []string
	for _, ch := range strings.Split(query.Get("channels"), ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			channels = append(channels, ch)
		}
	}
	if len(channels) == 0 {
		return nil, nil, http.StatusBadRequest, errors.New("channels are required")
	}

	credential := query.Get("token")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		credential = strings.TrimPrefix(auth, "Bearer ")
	}
	if credential == "" {
		return nil, nil, http.StatusUnauthorized, ErrUnauthorized
	}

	claims, err := h.Authorize(credential, channels)
	switch {
	case err == nil:
		return claims, channels, http.StatusOK, nil
	case errors.Is(err, ErrUnauthorized):
		return nil, nil, http.StatusUnauthorized, err
	default:
		return nil, nil, http.StatusForbidden, err
	}
}

func (h *Hub) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	claims, channels, status, err := h.authorizeRequest(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	sub, err := h.Attach(channels)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	expiry := h.clock.Timer(claims.ExpiresAt.Sub(h.clock.Now()))
	defer expiry.Stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, ": subscribed %s\n\n", sub.ID)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-expiry.C:
			fmt.Fprint(w, "event: expired\ndata: {}\n\n")
			flusher.Flush()
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, channels, status, err := h.authorizeRequest(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}
	defer conn.Close()

	sub, err := h.Attach(channels)
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()), time.Now().Add(writeWait))
		return
	}
	defer sub.Close()

	// Subscribers never send data; reading only surfaces the peer closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debug("websocket subscriber closed", "subscription", sub.ID, "err", err)
				}
				return
			}
		}
	}()

	expiry := h.clock.Timer(claims.ExpiresAt.Sub(h.clock.Now()))
	defer expiry.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-expiry.C:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "credential expired"), time.Now().Add(writeWait))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case event, ok := <-sub.C:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub closed"), time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
