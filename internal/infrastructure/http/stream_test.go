package httpserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialStream(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(f.h)
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/prices/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func TestStreamPrices_SendsCurrentThenUpdates(t *testing.T) {
	f := setup(t, nil, RouterOptions{})
	require.NoError(t, f.srv.Poller.RefetchNow(context.Background()))

	conn := dialStream(t, f)

	var first pricesResponse
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, "2500", first.Prices["ethereum"].USD.String())
	require.NotNil(t, first.LastUpdatedAt)

	require.NoError(t, f.srv.Poller.RefetchNow(context.Background()))
	var second pricesResponse
	require.NoError(t, conn.ReadJSON(&second))
	require.Len(t, second.Prices, 6)
}

func TestStreamPrices_ClosesWhenPollerStops(t *testing.T) {
	f := setup(t, nil, RouterOptions{})
	conn := dialStream(t, f)

	f.srv.Poller.Stop()

	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
