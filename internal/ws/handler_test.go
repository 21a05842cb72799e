package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/scrim-review/internal/hub"
	"github.com/DoyleJ11/scrim-review/internal/session"
	"github.com/DoyleJ11/scrim-review/internal/syncer"
	"github.com/DoyleJ11/scrim-review/internal/types"
)

func oneShotSync(ctx context.Context, rep syncer.Reporter) (syncer.Status, error) {
	rep.Report(syncer.Status{State: syncer.StateRunning})
	done := syncer.Status{State: syncer.StateDone, Seen: 2}
	rep.Report(done)
	return done, nil
}

func dial(t *testing.T, h *hub.Hub, code string) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(Handler(h, zaptest.NewLogger(t)))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?code=" + code
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func TestHandlerStreamsSyncStatus(t *testing.T) {
	h := hub.NewHub(context.Background())
	require.NotNil(t, h.Create(context.Background(), "ABC123", session.Config{Sync: oneShotSync}))
	conn, ctx := dial(t, h, "ABC123")

	var first types.ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	assert.Equal(t, types.MsgSyncStatus, first.Type)
	assert.Equal(t, 0, first.Version)
	require.NotNil(t, first.Status)
	assert.Equal(t, syncer.StateIdle, first.Status.State)

	require.NoError(t, wsjson.Write(ctx, conn, types.ClientMessage{Type: types.MsgStartSync}))

	var last types.ServerMessage
	for last.Status == nil || last.Status.State != syncer.StateDone {
		require.NoError(t, wsjson.Read(ctx, conn, &last))
		require.Equal(t, types.MsgSyncStatus, last.Type)
	}
	assert.Equal(t, 2, last.Version)
	assert.Equal(t, 2, last.Status.Seen)
}

func TestHandlerRejectsUnknownType(t *testing.T) {
	h := hub.NewHub(context.Background())
	require.NotNil(t, h.Create(context.Background(), "ABC123", session.Config{}))
	conn, ctx := dial(t, h, "ABC123")

	var msg types.ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg)) // join snapshot

	require.NoError(t, wsjson.Write(ctx, conn, types.ClientMessage{Type: "LockPick"}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, types.MsgError, msg.Type)
	assert.Equal(t, "unknown type", msg.Error)
}

func TestHandlerUnknownCode(t *testing.T) {
	h := hub.NewHub(context.Background())
	srv := httptest.NewServer(Handler(h, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/?code=NOPE00", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}
