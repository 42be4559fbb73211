package httpmiddleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWrap_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), mark("outer"), mark("middle"), mark("inner"))
	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "middle", "inner"}, order)
}

func TestRequestID_Generated(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
}

func TestRequestID_Echoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "custom-request-id-12345")

	w := serve(RequestID()(okHandler()), req)

	assert.Equal(t, "custom-request-id-12345", w.Header().Get(RequestIDHeader))
}

func TestRequestID_InvalidReplaced(t *testing.T) {
	for _, id := range []string{"bad\x01id", strings.Repeat("a", 129)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, id)

		w := serve(RequestID()(okHandler()), req)

		got := w.Header().Get(RequestIDHeader)
		assert.NotEqual(t, id, got)
		assert.Len(t, got, 36)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestInjectLoggerAndLogRequests(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	lg := zap.New(core)

	var fromCtx *zap.Logger
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = zctx.From(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})
	h := Wrap(inner, RequestID(), InjectLogger(lg), LogRequests())

	req := httptest.NewRequest(http.MethodPost, "/cart/add", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	req.Header.Set("HX-Request", "true")
	w := serve(h, req)

	require.NotNil(t, fromCtx)
	assert.Equal(t, http.StatusTeapot, w.Code)

	entries := logs.FilterMessage("Request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/cart/add", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, len("short and stout"), fields["bytes"])
	assert.Equal(t, true, fields["htmx"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestLogRequests_ServerErrorIsWarn(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}), InjectLogger(zap.New(core)), LogRequests())

	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestGzip(t *testing.T) {
	body := strings.Repeat("<div class=\"product-card\"></div>", 100)
	h := Gzip()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	w := serve(h, req)

	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))
	assert.Less(t, w.Body.Len(), len(body))

	gz, err := pgzip.NewReader(w.Body)
	require.NoError(t, err)
	defer gz.Close()
	got, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestGzip_NotAccepted(t *testing.T) {
	h := Gzip()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "plain")
	}))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "plain", w.Body.String())
}

func TestThrottle(t *testing.T) {
	h := Throttle(ThrottleConfig{Every: time.Hour, Burst: 2})(okHandler())

	request := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/catalog/reload", nil)
		req.RemoteAddr = addr
		return serve(h, req)
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, request("10.0.0.1:1001").Code)

	w := request("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Other clients have their own budget.
	assert.Equal(t, http.StatusOK, request("10.0.0.2:1000").Code)
}

func TestThrottle_DropsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	set := newLimiterSet(ThrottleConfig{Every: time.Second, Burst: 2, Idle: time.Minute}, clock)

	for i := range 100 {
		set.get("10.0.0." + strconv.Itoa(i))
	}
	require.Equal(t, 100, set.len())

	// Keys seen recently survive the sweep.
	now = now.Add(30 * time.Second)
	kept := set.get("10.0.0.1")
	require.Equal(t, 100, set.len())

	now = now.Add(45 * time.Second)
	assert.Same(t, kept, set.get("10.0.0.1"))
	assert.Equal(t, 1, set.len())

	now = now.Add(2 * time.Minute)
	assert.NotSame(t, kept, set.get("10.0.0.1"))
	assert.Equal(t, 1, set.len())
}

func TestThrottle_DefaultIdle(t *testing.T) {
	set := newLimiterSet(ThrottleConfig{Every: time.Hour, Burst: 2}, time.Now)
	assert.Equal(t, 2*time.Hour, set.idle)

	set = newLimiterSet(ThrottleConfig{Every: time.Second}, time.Now)
	assert.Equal(t, time.Minute, set.idle)
	assert.Equal(t, 1, set.burst)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	assert.Equal(t, "192.168.1.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}
