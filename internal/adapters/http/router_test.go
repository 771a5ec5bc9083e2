package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Mode:                  gin.TestMode,
		StaticPath:            filepath.Join(t.TempDir(), "missing"),
		Secret:                "test-secret",
		ReadLimit:             1 << 16,
		PingPeriod:            time.Minute,
		WriteWait:             time.Second,
		SendBuffer:            32,
		HistoryLimit:          domain.DefaultHistoryLimit,
		ChannelCreateLimit:    10,
		ChannelCreateInterval: time.Minute,
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) (*gin.Engine, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	o := orch.New(app.NewRegistry(), app.NewDefaultDirectory(cfg.HistoryLimit), app.SimplePolicy{})
	return SetupRouter(context.Background(), cfg, o), o
}

func doJSON(t *testing.T, r http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateChannel(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t))

	w := doJSON(t, r, http.MethodPost, "/api/channels/text", `{"name":"Dev Talk"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, "dev-talk", body["id"])
	require.Equal(t, "Dev Talk", body["name"])
	require.Equal(t, "text", body["kind"])

	w = doJSON(t, r, http.MethodPost, "/api/channels", `{"kind":"voice","name":"Dev Talk"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "voice-dev-talk", decodeBody(t, w)["id"])

	w = doJSON(t, r, http.MethodPost, "/api/channels/text", `{"name":"dev  talk"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "ChannelAlreadyExists", decodeBody(t, w)["error"])

	w = doJSON(t, r, http.MethodPost, "/api/channels/voice", `{"name":"   "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "InvalidChannelName", decodeBody(t, w)["error"])

	w = doJSON(t, r, http.MethodPost, "/api/channels/video", `{"name":"x"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "InvalidRoomKind", decodeBody(t, w)["error"])

	w = doJSON(t, r, http.MethodPost, "/api/channels/text", `not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "InvalidChannelName", decodeBody(t, w)["error"])
}

func TestCreateChannel_RateLimitedPerClient(t *testing.T) {
	cfg := testConfig(t)
	cfg.ChannelCreateLimit = 1
	r, _ := newTestRouter(t, cfg)

	w := doJSON(t, r, http.MethodPost, "/api/channels/text", `{"name":"one"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	w = doJSON(t, r, http.MethodPost, "/api/channels/text", `{"name":"two"}`, cookies...)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "RateLimited", decodeBody(t, w)["error"])
}

func TestCreateChannel_RejectionsKeepQuota(t *testing.T) {
	cfg := testConfig(t)
	cfg.ChannelCreateLimit = 1
	r, _ := newTestRouter(t, cfg)

	w := doJSON(t, r, http.MethodPost, "/api/channels/text", `{"name":"  "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	w = doJSON(t, r, http.MethodPost, "/api/channels/text", `{"name":"General"}`, cookies...)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "ChannelAlreadyExists", decodeBody(t, w)["error"])

	w = doJSON(t, r, http.MethodPost, "/api/channels/text", `{"name":"fresh"}`, cookies...)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/channels/text", `{"name":"fresh"}`, cookies...)
	require.Equal(t, http.StatusBadRequest, w.Code, "a collision is reported before the quota")

	w = doJSON(t, r, http.MethodPost, "/api/channels/text", `{"name":"another"}`, cookies...)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestListRoomsAndMembers(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(t))

	w := doJSON(t, r, http.MethodGet, "/api/rooms", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rooms struct {
		Rooms []struct {
			ID          string `json:"id"`
			Kind        string `json:"kind"`
			MemberCount int    `json:"member_count"`
		} `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rooms))
	require.Len(t, rooms.Rooms, 2)
	require.Equal(t, "general", rooms.Rooms[0].ID)
	require.Equal(t, "voice", rooms.Rooms[1].Kind)

	w = doJSON(t, r, http.MethodGet, "/api/rooms/general/members", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/rooms/voice-general", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Voice General", decodeBody(t, w)["name"])

	w = doJSON(t, r, http.MethodGet, "/api/rooms/nowhere", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/rooms/nowhere/members", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "RoomNotFound", decodeBody(t, w)["error"])
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(v any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(v))
}

// waitFor reads frames until one of type typ arrives.
func (c *wsClient) waitFor(typ string) map[string]any {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame map[string]any
		require.NoError(c.t, c.conn.ReadJSON(&frame))
		if frame["type"] == typ {
			return frame
		}
	}
}

func TestSignalWebSocket_EndToEnd(t *testing.T) {
	r, o := newTestRouter(t, testConfig(t))
	srv := httptest.NewServer(r)
	defer srv.Close()

	alice := dial(t, srv)
	alice.send(map[string]any{"type": "sendMessage", "content": "too early"})
	require.Equal(t, "NotJoined", alice.waitFor("error")["code"])

	alice.send(map[string]any{"type": "join", "name": "alice"})
	assigned := alice.waitFor("sessionAssigned")
	aliceID := assigned["participant"].(map[string]any)["id"].(string)
	alice.waitFor("presenceSnapshot")

	bob := dial(t, srv)
	bob.send(map[string]any{"type": "join", "name": "bob"})
	bobID := bob.waitFor("sessionAssigned")["participant"].(map[string]any)["id"].(string)
	alice.waitFor("participantJoined")

	alice.send(map[string]any{"type": "sendMessage", "content": "hello"})
	for _, c := range []*wsClient{alice, bob} {
		posted := c.waitFor("messagePosted")
		require.Equal(t, "general", posted["roomId"])
		require.Equal(t, "hello", posted["message"].(map[string]any)["content"])
	}

	alice.send(map[string]any{"type": "signal", "toId": bobID, "payload": map[string]any{"candidate": "c1"}})
	sig := bob.waitFor("signal")
	require.Equal(t, aliceID, sig["fromId"])
	require.Equal(t, "c1", sig["payload"].(map[string]any)["candidate"])

	alice.send(map[string]any{"type": "signal", "toId": "ghost", "payload": map[string]any{"candidate": "c1"}})
	require.Equal(t, "PeerUnavailable", alice.waitFor("signalError")["reason"])

	alice.send(map[string]any{"type": "ping"})
	alice.waitFor("pong")

	require.NoError(t, bob.conn.Close())
	left := alice.waitFor("participantLeft")
	require.Equal(t, bobID, left["id"])

	require.Eventually(t, func() bool { return o.Registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}
