package hub

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// readSSE returns the next event name and data from an event stream,
// skipping comments.
func readSSE(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" || data != "" {
				return event, data
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestSSEDelivery(t *testing.T) {
	h, clk := newTestHub(t, 0)
	srv := newTestServer(t, h)
	credential, err := h.GrantReadCredential(context.Background(), []string{"room1", "room2"}, 60)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/hub/events?subscribeKey=sub-c-test&channels=room1", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+credential)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body := bufio.NewReader(resp.Body)
	// The subscription is attached before the first comment is flushed.
	line, err := body.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, ": subscribed "))

	require.NoError(t, h.Publish(context.Background(), "room2", testMessage("ignored")))
	require.NoError(t, h.Publish(context.Background(), "room1", testMessage(`"hello"`)))

	name, data := readSSE(t, body)
	require.Equal(t, "message", name)
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	require.Equal(t, "room1", ev.Channel)
	require.Equal(t, `"hello"`, ev.Message.MessageJSON)

	clk.Add(time.Hour)
	name, _ = readSSE(t, body)
	require.Equal(t, "expired", name)
}

func TestSSEAuthorization(t *testing.T) {
	h, _ := newTestHub(t, 0)
	srv := newTestServer(t, h)
	credential, err := h.GrantReadCredential(context.Background(), []string{"room1"}, 60)
	require.NoError(t, err)

	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"wrong subscribe key", "subscribeKey=nope&channels=room1&token=" + credential, http.StatusForbidden},
		{"no channels", "subscribeKey=sub-c-test&token=" + credential, http.StatusBadRequest},
		{"no credential", "subscribeKey=sub-c-test&channels=room1", http.StatusUnauthorized},
		{"garbage credential", "subscribeKey=sub-c-test&channels=room1&token=abc", http.StatusUnauthorized},
		{"channel not granted", "subscribeKey=sub-c-test&channels=room1,room2&token=" + credential, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/hub/events?" + tc.query)
			require.NoError(t, err)
			resp.Body.Close()
			require.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestWebSocketDelivery(t *testing.T) {
	h, _ := newTestHub(t, 0)
	srv := newTestServer(t, h)
	credential, err := h.GrantReadCredential(context.Background(), []string{"room1"}, 60)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/hub/ws?subscribeKey=sub-c-test&channels=room1&token=" + credential
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The handler attaches right after the upgrade; publish until the
	// first event arrives.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	received := make(chan Event, 1)
	go func() {
		var ev Event
		if err := conn.ReadJSON(&ev); err == nil {
			received <- ev
		}
		close(received)
	}()

	var ev Event
	require.Eventually(t, func() bool {
		_ = h.Publish(context.Background(), "room1", testMessage(`"hi"`))
		select {
		case got, ok := <-received:
			ev = got
			return ok
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, "room1", ev.Channel)
	require.Equal(t, `"hi"`, ev.Message.MessageJSON)
}

func TestWebSocketRejectsBadCredential(t *testing.T) {
	h, _ := newTestHub(t, 0)
	srv := newTestServer(t, h)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/hub/ws?subscribeKey=sub-c-test&channels=room1&token=bad"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
