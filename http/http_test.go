package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aukilabs/flock/simulation"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func TestMetricsPathFormatter(t *testing.T) {
	require.Empty(t, MetricsPathFormatter(http.StatusNotFound, "/missing"))
	require.Empty(t, MetricsPathFormatter(http.StatusMethodNotAllowed, "/frame"))
	require.Equal(t, "/frame", MetricsPathFormatter(http.StatusOK, "/frame"))
}

func TestHandleReadyCheck(t *testing.T) {
	ready := false
	h := HandleReadyCheck(func() bool { return ready })

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	ready = true
	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleVersion(t *testing.T) {
	w := httptest.NewRecorder()
	HandleVersion("v1.2.3")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "v1.2.3", w.Body.String())
}

func TestHandleWithCORS(t *testing.T) {
	var calls int
	h := HandleWithCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/frame", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.Zero(t, calls)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/frame", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, 1, calls)
}

func TestHandleFrameSnapshot(t *testing.T) {
	t.Run("no frame", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleFrameSnapshot(func() (simulation.Frame, bool) {
			return simulation.Frame{}, false
		})(w, httptest.NewRequest(http.MethodGet, "/frame", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("last frame", func(t *testing.T) {
		frame := simulation.Frame{
			Tick:    3,
			Width:   100,
			Height:  100,
			Circles: []simulation.Circle{{X: 1, Y: 2, Radius: 3, Color: "#FFCF56"}},
		}

		w := httptest.NewRecorder()
		HandleFrameSnapshot(func() (simulation.Frame, bool) {
			return frame, true
		})(w, httptest.NewRequest(http.MethodGet, "/frame", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var got simulation.Frame
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Equal(t, frame, got)
	})

	t.Run("wrong method", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleFrameSnapshot(func() (simulation.Frame, bool) {
			return simulation.Frame{}, true
		})(w, httptest.NewRequest(http.MethodPost, "/frame", nil))
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestVerifyAuthTokenHandler(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}

	tests := []struct {
		name     string
		token    string
		header   string
		expected int
	}{
		{name: "no token configured", expected: http.StatusOK},
		{name: "valid token", token: "secret", header: "Bearer secret", expected: http.StatusOK},
		{name: "invalid token", token: "secret", header: "Bearer nope", expected: http.StatusUnauthorized},
		{name: "missing token", token: "secret", expected: http.StatusUnauthorized},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/smoke-test", nil)
			if test.header != "" {
				r.Header.Set("Authorization", test.header)
			}

			w := httptest.NewRecorder()
			VerifyAuthTokenHandler(test.token, ok)(w, r)
			require.Equal(t, test.expected, w.Code)
		})
	}
}

func TestListenAndServe(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mux http.ServeMux
	mux.HandleFunc("/health", HandleHealthCheck)

	done := make(chan error, 1)
	go func() {
		done <- ListenAndServe(ctx, &http.Server{Addr: addr, Handler: &mux})
	}()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		defer res.Body.Close()
		io.Copy(io.Discard, res.Body)
		return res.StatusCode == http.StatusOK
	}, time.Second*2, time.Millisecond*10)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second * 6):
		require.FailNow(t, "servers did not stop")
	}
}
