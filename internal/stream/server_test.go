package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/marketstream/internal/auth"
	"github.com/rickgao/marketstream/internal/codec"
	"github.com/rickgao/marketstream/internal/connection"
)

const (
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

var testCreds = auth.Credentials{KeyID: "key", Secret: "secret"}

// fakeServer speaks the stream handshake and records every command received
// after authentication, per connection.
type fakeServer struct {
	t     *testing.T
	srv   *httptest.Server
	codec codec.Codec

	authCode int // non-zero rejects auth with this error code

	mu       sync.Mutex
	conns    []*websocket.Conn
	received [][]codec.Record
	auths    []codec.Record
}

func newFakeServer(t *testing.T, c codec.Codec) *fakeServer {
	t.Helper()
	if c == nil {
		c = codec.JSON{}
	}
	fs := &fakeServer{t: t, codec: c}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fs.serve(conn)
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http")
}

func (fs *fakeServer) write(conn *websocket.Conn, v any) error {
	data, err := fs.codec.Encode(v)
	if err != nil {
		return err
	}
	kind := websocket.TextMessage
	if fs.codec.Binary() {
		kind = websocket.BinaryMessage
	}
	return conn.WriteMessage(kind, data)
}

func (fs *fakeServer) read(conn *websocket.Conn) (codec.Record, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	recs, err := fs.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	return recs[0], nil
}

func (fs *fakeServer) serve(conn *websocket.Conn) {
	fs.mu.Lock()
	idx := len(fs.conns)
	fs.conns = append(fs.conns, conn)
	fs.received = append(fs.received, nil)
	authCode := fs.authCode
	fs.mu.Unlock()

	if err := fs.write(conn, []any{map[string]any{"T": "success", "msg": "connected"}}); err != nil {
		return
	}
	authMsg, err := fs.read(conn)
	if err != nil {
		return
	}
	fs.mu.Lock()
	fs.auths = append(fs.auths, authMsg)
	fs.mu.Unlock()

	if authCode != 0 {
		fs.write(conn, []any{map[string]any{"T": "error", "code": authCode, "msg": "auth failed"}})
		time.Sleep(100 * time.Millisecond)
		return
	}
	if err := fs.write(conn, []any{map[string]any{"T": "success", "msg": "authenticated"}}); err != nil {
		return
	}

	for {
		rec, err := fs.read(conn)
		if err != nil {
			return
		}
		fs.mu.Lock()
		fs.received[idx] = append(fs.received[idx], rec)
		fs.mu.Unlock()
	}
}

// commands returns what connection idx received after authenticating.
func (fs *fakeServer) commands(idx int) []codec.Record {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if idx >= len(fs.received) {
		return nil
	}
	return append([]codec.Record(nil), fs.received[idx]...)
}

func (fs *fakeServer) authMessages() []codec.Record {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]codec.Record(nil), fs.auths...)
}

func (fs *fakeServer) connCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.conns)
}

// push sends records to the newest connection.
func (fs *fakeServer) push(records ...map[string]any) {
	fs.mu.Lock()
	conn := fs.conns[len(fs.conns)-1]
	fs.mu.Unlock()

	batch := make([]any, len(records))
	for i, r := range records {
		batch[i] = r
	}
	if err := fs.write(conn, batch); err != nil {
		fs.t.Errorf("push: %v", err)
	}
}

// drop closes the newest connection abruptly.
func (fs *fakeServer) drop() {
	fs.mu.Lock()
	conn := fs.conns[len(fs.conns)-1]
	fs.mu.Unlock()
	conn.Close()
}

func testOptions(url string) Options {
	cfg := connection.DefaultEngineConfig()
	cfg.ReconnectInitial = 20 * time.Millisecond
	cfg.ReconnectMax = 100 * time.Millisecond
	return Options{
		URL:         url,
		Credentials: testCreds,
		Engine:      cfg,
	}
}
