// Package health serves liveness and readiness probes backed by periodic
// background checks.
//
// Every registered check gets its own goroutine that runs it once per
// interval. Results go through thresholds so a single blip does not flap the
// endpoint: a check flips to unhealthy after FailureThreshold consecutive
// failures and back to healthy after SuccessThreshold consecutive successes.
// The endpoints never run checks themselves; they report the last outcome.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// Default thresholds applied to every registered check.
const (
	FailureThreshold = 3
	SuccessThreshold = 1
)

// CheckFunc reports the health of one dependency. It returns nil when the
// dependency is fine and an error describing the problem otherwise. The ctx
// carries the per-check timeout.
type CheckFunc func(ctx context.Context) error

// probe is one registered check plus its threshold state.
//
// run is only ever called from the goroutine Start spawns for the probe, so
// the counters need no locking. healthy and lastErr are read by HTTP
// handlers on arbitrary goroutines and are therefore atomic.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	// healthy is stored by run and loaded by the endpoints.
	healthy atomic.Bool
	// lastErr is the message of the most recent failure, nil after a pass.
	lastErr atomic.Pointer[string]

	// fails and oks count consecutive outcomes. Owned by run.
	fails, oks int
}

// newProbe returns a probe that reports healthy until it proves otherwise.

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	p := &probe{name: name, timeout: timeout, check: check}
	p.healthy.Store(true)
	return p
}

// run executes the check once under the probe timeout and applies the
// thresholds. Must be called from a single goroutine.
func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.check(ctx); err != nil {
		msg := err.Error()
		p.lastErr.Store(&msg)
		p.oks = 0
		if p.fails++; p.fails >= FailureThreshold {
			p.healthy.Store(false)
		}
		return
	}
	p.lastErr.Store(nil)
	p.fails = 0
	if p.oks++; p.oks >= SuccessThreshold {
		p.healthy.Store(true)
	}
}

// failure returns the message to report for an unhealthy probe. It falls back
// to a generic message when the failure streak has no recorded error.
func (p *probe) failure() (string, bool) {
	if p.healthy.Load() {
		return "", false
	}
	if msg := p.lastErr.Load(); msg != nil {
		return *msg, true
	}
	return "check is unhealthy", true
}

// Health aggregates liveness and readiness probes.
type Health struct {
	// ready is the manual gate toggled by SetReady.
	ready atomic.Bool

	// mu guards the probe slices and cancel. Endpoints copy the slices under
	// mu and read probe state after releasing it.
	mu        sync.Mutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New returns a Health that reports not ready until SetReady(true) is called
// once the service has finished starting up.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that decides whether the process should
// be restarted, such as a stuck event loop. Register checks before Start;
// checks added later are not scheduled.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
	h.mu.Unlock()
}

// AddReadinessCheck registers a check that decides whether traffic should be
// routed to the process, such as database connectivity. Register checks
// before Start; checks added later are not scheduled.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
	h.mu.Unlock()
}

// Start runs every registered check immediately and then once per interval
// until Stop is called or ctx is done. Each check runs in its own goroutine.
// Calling Start again before Stop is a no-op.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return
	}
	ctx, h.cancel = context.WithCancel(ctx)

	for _, p := range h.all() {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			// First run happens before the first tick.
			for {
				p.run(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop halts the background checks and waits for them to exit. It is safe to
// call Stop more than once, and Start may be called again afterwards.
func (h *Health) Stop() {
	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// SetReady toggles the manual readiness gate. Services open it after startup
// and close it at the start of graceful shutdown to drain traffic.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness check is
// currently passing.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(failures(h.probes(false))) == 0
}

// LiveEndpoint serves /livez. It answers 200 {"status":"ok"} while every
// liveness check passes and 503 with the failing checks otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, failures(h.probes(true)))
}

// ReadyEndpoint serves /readyz. It answers 200 only when the gate is open
// and every readiness check passes. A closed gate is reported as the
// "_readiness" check.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed := failures(h.probes(false))
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	writeStatus(w, failed)
}

// all returns every probe. Must be called with h.mu held.
func (h *Health) all() []*probe {
	out := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	out = append(out, h.liveness...)
	return append(out, h.readiness...)
}

// probes copies either probe list under h.mu.
func (h *Health) probes(live bool) []*probe {
	h.mu.Lock()
	defer h.mu.Unlock()
	if live {
		return append([]*probe(nil), h.liveness...)
	}
	return append([]*probe(nil), h.readiness...)
}

// failures maps check name to message for every unhealthy probe. It reads
// the stored outcome and never re-runs a check.
func failures(probes []*probe) map[string]string {
	out := make(map[string]string)
	for _, p := range probes {
		if msg, failed := p.failure(); failed {
			out[p.name] = msg
		}
	}
	return out
}

// writeStatus answers 200 {"status":"ok"} or 503
// {"status":"unhealthy","checks":{...}} with check names sorted.
func writeStatus(w http.ResponseWriter, failed map[string]string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")

	status := http.StatusOK
	if len(failed) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")
		e.FieldStart("checks")
		e.ObjStart()
		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failed[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; a failed write means the client is gone.
	_, _ = w.Write(e.Bytes())
}
