package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// NewTestingEnv starts a test server streaming the hub frames. It returns a
// function that connects a viewer with the given query string, and a function
// that shuts the server down.
func NewTestingEnv(t *testing.T, hub *Hub) (func(query string) (*websocket.Conn, error), func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(hub.Server(ctx))

	dial := func(query string) (*websocket.Conn, error) {
		url := strings.ReplaceAll(server.URL, "http://", "ws://") + "/"
		if query != "" {
			url += "?" + query
		}

		config, err := websocket.NewConfig(url, "http://localhost")
		if err != nil {
			return nil, err
		}
		config.Header.Set("User-Agent", "flock-test")
		return websocket.DialConfig(config)
	}

	return dial, func() {
		cancel()
		server.Close()

		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
	}
}
