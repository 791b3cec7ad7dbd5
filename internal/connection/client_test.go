package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn, *http.Request)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
	t.Cleanup(server.Close)

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func drain(conn *websocket.Conn, _ *http.Request) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func testClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:          url,
		PingTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   100,
	}
}

func TestClient_Connect(t *testing.T) {
	server := mockWSServer(t, drain)

	client := NewClient(testClientConfig(wsURL(server)), nil)
	require.NoError(t, client.Connect(context.Background()))
	assert.True(t, client.IsConnected())

	require.NoError(t, client.Close())
	assert.False(t, client.IsConnected())
}

func TestClient_ConnectSendsHeaders(t *testing.T) {
	got := make(chan string, 1)
	server := mockWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		got <- r.Header.Get("User-Agent")
		drain(conn, r)
	})

	cfg := testClientConfig(wsURL(server))
	cfg.Header = http.Header{"User-Agent": []string{"marketstream/test"}}
	client := NewClient(cfg, nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	select {
	case ua := <-got:
		assert.Equal(t, "marketstream/test", ua)
	case <-time.After(time.Second):
		t.Fatal("handshake not observed")
	}
}

func TestClient_ConnectAfterClose(t *testing.T) {
	client := NewClient(testClientConfig("ws://localhost:1"), nil)
	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Connect(context.Background()), ErrAlreadyClosed)
}

func TestClient_Send(t *testing.T) {
	for _, tc := range []struct {
		name     string
		binary   bool
		wantType int
	}{
		{"text", false, websocket.TextMessage},
		{"binary", true, websocket.BinaryMessage},
	} {
		t.Run(tc.name, func(t *testing.T) {
			type frame struct {
				kind int
				data []byte
			}
			received := make(chan frame, 1)
			server := mockWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
				kind, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				received <- frame{kind, msg}
				drain(conn, nil)
			})

			cfg := testClientConfig(wsURL(server))
			cfg.Binary = tc.binary
			client := NewClient(cfg, nil)
			require.NoError(t, client.Connect(context.Background()))
			defer client.Close()

			payload := []byte(`{"action":"subscribe"}`)
			require.NoError(t, client.Send(payload))

			select {
			case f := <-received:
				assert.Equal(t, tc.wantType, f.kind)
				assert.Equal(t, payload, f.data)
			case <-time.After(time.Second):
				t.Fatal("frame not received")
			}
		})
	}
}

func TestClient_Messages(t *testing.T) {
	testMessages := []string{
		`[{"T":"success","msg":"connected"}]`,
		`[{"T":"t","S":"AAPL","p":1}]`,
		`[{"T":"q","S":"AAPL","bp":2}]`,
	}

	server := mockWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		for _, msg := range testMessages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		time.Sleep(time.Second)
	})

	client := NewClient(testClientConfig(wsURL(server)), nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	var received []string
	timeout := time.After(time.Second)
	for range testMessages {
		select {
		case msg := <-client.Messages():
			received = append(received, string(msg.Data))
			assert.False(t, msg.ReceivedAt.IsZero())
		case <-timeout:
			t.Fatalf("timeout waiting for messages, received %d of %d", len(received), len(testMessages))
		}
	}
	assert.Equal(t, testMessages, received)
}

func TestClient_ServerCloseReportsError(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	})

	client := NewClient(testClientConfig(wsURL(server)), nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	select {
	case err := <-client.Errors():
		assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
	case <-time.After(time.Second):
		t.Fatal("no error after server close")
	}
	require.Eventually(t, func() bool { return !client.IsConnected() }, time.Second, 5*time.Millisecond)
}

func TestClient_SendNotConnected(t *testing.T) {
	client := NewClient(testClientConfig("ws://localhost:12345"), nil)
	assert.ErrorIs(t, client.Send([]byte("test")), ErrNotConnected)
}

func TestClient_DoubleClose(t *testing.T) {
	server := mockWSServer(t, func(*websocket.Conn, *http.Request) {
		time.Sleep(time.Second)
	})

	client := NewClient(testClientConfig(wsURL(server)), nil)
	require.NoError(t, client.Connect(context.Background()))

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}

func TestClient_PingHandler(t *testing.T) {
	var mu sync.Mutex
	var pong string
	server := mockWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		conn.SetPongHandler(func(data string) error {
			mu.Lock()
			pong = data
			mu.Unlock()
			return nil
		})
		if err := conn.WriteControl(websocket.PingMessage, []byte("heartbeat"), time.Now().Add(time.Second)); err != nil {
			return
		}
		drain(conn, nil)
	})

	client := NewClient(testClientConfig(wsURL(server)), nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return pong == "heartbeat"
	}, time.Second, 5*time.Millisecond)
	assert.True(t, client.IsConnected())
}

func TestClient_StaleConnection(t *testing.T) {
	// The server never reads, so client pings go unanswered.
	server := mockWSServer(t, func(*websocket.Conn, *http.Request) {
		time.Sleep(2 * time.Second)
	})

	cfg := testClientConfig(wsURL(server))
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PingTimeout = 50 * time.Millisecond
	client := NewClient(cfg, nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	select {
	case err := <-client.Errors():
		assert.ErrorIs(t, err, ErrStaleConnection)
	case <-time.After(time.Second):
		t.Fatal("stale connection not reported")
	}
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	assert.Equal(t, 90*time.Second, cfg.PingTimeout)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, 1000, cfg.BufferSize)
}

func TestClient_SendBoundedByWriteTimeout(t *testing.T) {
	release := make(chan struct{})
	server := mockWSServer(t, func(*websocket.Conn, *http.Request) {
		<-release
	})
	t.Cleanup(func() { close(release) })

	cfg := testClientConfig(wsURL(server))
	cfg.WriteTimeout = 200 * time.Millisecond
	client := NewClient(cfg, nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	// Larger than the loopback socket buffers, so the write stalls.
	payload := make([]byte, 64<<20)
	start := time.Now()
	err := client.Send(payload)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
