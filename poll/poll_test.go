package poll

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeQuerier struct {
	mu    sync.Mutex
	calls []string
	resp  map[string]string
}

func (f *fakeQuerier) Query(cmd string, size int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)
	resp, ok := f.resp[cmd]
	if !ok {
		return "", errors.New("no response")
	}
	return resp, nil
}

type chanHandler struct {
	NopProc
	results chan Result
}

func (h *chanHandler) ProcResult(err error, r *Result) {
	select {
	case h.results <- *r:
	default:
	}
}

func TestPoller_AddPollJob_invalid(t *testing.T) {
	p := New(&fakeQuerier{})
	defer p.Close()

	tests := []struct {
		name string
		req  Request
	}{
		{"empty command", Request{Size: -1, ScanRate: time.Second}},
		{"bad size", Request{Command: "MEAS?", Size: -2, ScanRate: time.Second}},
		{"negative scan rate", Request{Command: "MEAS?", Size: -1, ScanRate: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.AddPollJob(tt.req); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("AddPollJob() error = %v, want %v", err, ErrInvalidRequest)
			}
		})
	}
}

func TestPoller_AddPollJob_closed(t *testing.T) {
	p := New(&fakeQuerier{})
	p.Close()
	if err := p.AddPollJob(Request{Command: "MEAS?", Size: -1}); err == nil {
		t.Errorf("AddPollJob() after Close() error = nil")
	}
}

func TestPoller_poll(t *testing.T) {
	q := &fakeQuerier{resp: map[string]string{"MEAS?": "1.5"}}
	h := &chanHandler{results: make(chan Result, 8)}
	p := New(q, WithHandler(h))
	p.Start()
	defer p.Close()

	if err := p.AddPollJob(Request{Command: "MEAS?", Size: -1, ScanRate: 10 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	var last Result
	for i := 0; i < 2; i++ {
		select {
		case last = <-h.results:
		case <-time.After(2 * time.Second):
			t.Fatalf("no result after %d polls", i)
		}
	}
	if last.Command != "MEAS?" || last.TxCnt < 2 || last.ErrCnt != 0 {
		t.Errorf("Result = %+v", last)
	}
}

func TestPoller_panic(t *testing.T) {
	panicked := make(chan interface{}, 1)
	p := New(&fakeQuerier{}, WithHandler(panicHandler{}), WithPanicHandle(func(v interface{}) {
		select {
		case panicked <- v:
		default:
		}
	}))
	p.Start()
	defer p.Close()

	if err := p.AddPollJob(Request{Command: "MEAS?", Size: -1, ScanRate: 10 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-panicked:
	case <-time.After(2 * time.Second):
		t.Fatal("panic handle not called")
	}
}

type panicHandler struct{ NopProc }

func (panicHandler) ProcResult(error, *Result) { panic("boom") }

type recordHandler struct {
	responses []string
	results   int
}

func (h *recordHandler) ProcResponse(_, resp string) { h.responses = append(h.responses, resp) }
func (h *recordHandler) ProcResult(error, *Result)   { h.results++ }

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	next := &recordHandler{}
	h, err := NewMetricsHandler(reg, next)
	if err != nil {
		t.Fatal(err)
	}

	h.ProcResponse("VOLT?", " 12.5\n")
	h.ProcResult(nil, &Result{Command: "VOLT?"})
	h.ProcResponse("IDN?", "ACME,PSU")
	h.ProcResult(nil, &Result{Command: "IDN?"})
	h.ProcResult(errors.New("timeout"), &Result{Command: "VOLT?"})

	if got := testutil.ToFloat64(h.values.WithLabelValues("VOLT?")); got != 12.5 {
		t.Errorf("value gauge = %v, want 12.5", got)
	}
	if got := testutil.ToFloat64(h.queries.WithLabelValues("VOLT?")); got != 2 {
		t.Errorf("queries counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(h.errors.WithLabelValues("VOLT?")); got != 1 {
		t.Errorf("errors counter = %v, want 1", got)
	}
	if len(next.responses) != 2 || next.results != 3 {
		t.Errorf("next handler got %d responses, %d results", len(next.responses), next.results)
	}

	if _, err = NewMetricsHandler(reg, nil); err == nil {
		t.Errorf("NewMetricsHandler() registering twice error = nil")
	}
}
