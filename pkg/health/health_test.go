package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

type statusBody struct {
	Status string
	Checks map[string]string
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusBody {
	t.Helper()
	var body statusBody
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			s, err := d.Str()
			body.Status = s
			return err
		case "checks":
			body.Checks = map[string]string{}
			return d.Obj(func(d *jx.Decoder, name string) error {
				msg, err := d.Str()
				body.Checks[name] = msg
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return body
}

func get(h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

// --- Tests ---

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		runs       int
		check      CheckFunc
		wantCode   int
		wantStatus string
		wantCheck  string
	}{
		{name: "no probes", wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "passing", runs: 3, check: passing(), wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "below threshold", runs: 2, check: failing("temporary"), wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "past threshold", runs: 3, check: failing("connection refused"), wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy", wantCheck: "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			if tt.check != nil {
				h.AddLivenessCheck("db", time.Second, tt.check)
				for range tt.runs {
					h.liveness[0].run(context.Background())
				}
			}

			w := get(h.LiveEndpoint)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			body := decodeStatus(t, w)
			assert.Equal(t, tt.wantStatus, body.Status)
			if tt.wantCheck != "" {
				assert.Equal(t, tt.wantCheck, body.Checks["db"])
			}
		})
	}
}

func TestReadyEndpoint_Gate(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passing())

	w := get(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decodeStatus(t, w).Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, get(h.ReadyEndpoint).Code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, get(h.ReadyEndpoint).Code)
}

func TestReadyEndpoint_OneFailingProbe(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passing())
	h.AddReadiness("redis", failing("dial tcp: refused"), ProbeOptions{FailureThreshold: 1})
	h.SetReady(true)

	h.readiness[1].run(context.Background())

	w := get(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeStatus(t, w)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "dial tcp: refused", body.Checks["redis"])
	assert.NotContains(t, body.Checks, "postgres")
	assert.False(t, h.IsReady())
}

func TestProbe_Recovers(t *testing.T) {
	down := true
	h := New()
	h.AddLiveness("flaky", func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	}, ProbeOptions{SuccessThreshold: 2})
	p := h.liveness[0]
	ctx := context.Background()

	for range 3 {
		p.run(ctx)
	}
	assert.False(t, p.healthy.Load())

	down = false
	p.run(ctx)
	assert.False(t, p.healthy.Load(), "one pass is below the success threshold")
	p.run(ctx)
	assert.True(t, p.healthy.Load())
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(100000))
	h.AddReadinessCheck("postgres", time.Second, PingCheck(&mockPinger{}))
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				get(h.LiveEndpoint)
				get(h.ReadyEndpoint)
			}
		}()
	}
	wg.Wait()

	h.Stop()
	h.Stop()
	assert.True(t, h.IsReady())
}

func TestCheckers(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.ErrorContains(t, GoroutineCountCheck(0)(context.Background()), "exceeds threshold")

	assert.NoError(t, PingCheck(&mockPinger{})(context.Background()))
	assert.ErrorContains(t, PingCheck(&mockPinger{err: errors.New("refused")})(context.Background()), "ping: refused")
}
