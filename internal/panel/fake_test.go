package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"import_panel/internal/channel"
	"import_panel/internal/models"
)

// fakeChannel is an in-memory Channel. Events are unbuffered so a push
// returns only once the panel goroutine has taken the frame.
type fakeChannel struct {
	events chan models.Frame

	mu       sync.Mutex
	emitted  []models.Frame
	requests []*fakeCall
	closed   bool
	emitErr  error
}

type fakeCall struct {
	id    string
	event string
	jobID string

	mu        sync.Mutex
	cancelled bool
}

func (r *fakeCall) ID() string { return r.id }

func (r *fakeCall) Cancel() {
	r.mu.Lock()
	r.cancelled = true
	r.mu.Unlock()
}

func (r *fakeCall) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan models.Frame)}
}

func (c *fakeChannel) Events() <-chan models.Frame { return c.events }

func (c *fakeChannel) Emit(event string, data any) error {
	raw, _ := json.Marshal(data)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.emitErr != nil {
		return c.emitErr
	}
	c.emitted = append(c.emitted, models.Frame{Event: event, Data: raw})
	return nil
}

func (c *fakeChannel) Request(event string, data any) (Call, error) {
	raw, _ := json.Marshal(data)
	var ref models.JobRef
	_ = json.Unmarshal(raw, &ref)
	c.mu.Lock()
	defer c.mu.Unlock()
	r := &fakeCall{id: fmt.Sprintf("req-%d", len(c.requests)+1), event: event, jobID: ref.JobID}
	c.requests = append(c.requests, r)
	c.emitted = append(c.emitted, models.Frame{Event: event, Data: raw, RequestID: r.id})
	return r, nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// emittedEvents lists emitted event names with their job/config id.
func (c *fakeChannel) emittedEvents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.emitted))
	for _, f := range c.emitted {
		var ref struct {
			JobID          string `json:"job_id"`
			ImportConfigID string `json:"import_config_id"`
		}
		_ = json.Unmarshal(f.Data, &ref)
		out = append(out, f.Event+":"+ref.JobID+ref.ImportConfigID)
	}
	return out
}

func (c *fakeChannel) resetEmitted() {
	c.mu.Lock()
	c.emitted = nil
	c.mu.Unlock()
}

func (c *fakeChannel) lastRequest(t *testing.T) *fakeCall {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		t.Fatalf("no requests sent")
	}
	return c.requests[len(c.requests)-1]
}

func (c *fakeChannel) push(t *testing.T, event string, payload any) {
	t.Helper()
	c.pushReply(t, event, payload, "")
}

// pushReply delivers a frame tagged with requestID, as the server answers
// a correlated request.
func (c *fakeChannel) pushReply(t *testing.T, event string, payload any, requestID string) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	select {
	case c.events <- models.Frame{Event: event, Data: raw, RequestID: requestID}:
	case <-time.After(2 * time.Second):
		t.Fatalf("panel did not take %s", event)
	}
}

const testConfig = "cfg-1"

type harness struct {
	t  *testing.T
	p  *Panel
	ch *fakeChannel
}

func mountTest(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	ch := newFakeChannel()
	opts := Options{
		ImportConfigID: testConfig,
		Dial:           func(context.Context) (Channel, error) { return ch, nil },
		FlushInterval:  time.Hour, // tests flush explicitly
	}
	if mutate != nil {
		mutate(&opts)
	}
	p, err := Mount(context.Background(), opts)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return &harness{t: t, p: p, ch: ch}
}

func (h *harness) connect(jobs ...models.ImportJob) {
	h.t.Helper()
	h.ch.push(h.t, channel.EventConnected, nil)
	h.ch.push(h.t, models.EventRunningJobs, models.RunningJobsPayload{ImportConfigID: testConfig, Jobs: jobs})
}

func (h *harness) snapshot() Snapshot {
	h.t.Helper()
	s, err := h.p.Snapshot()
	if err != nil {
		h.t.Fatalf("Snapshot: %v", err)
	}
	return s
}

func (h *harness) flush() {
	h.t.Helper()
	if err := h.p.do(h.p.flush); err != nil {
		h.t.Fatalf("flush: %v", err)
	}
}

func (h *harness) logs() []models.LogLine {
	h.t.Helper()
	lines, _, err := h.p.Logs(0)
	if err != nil {
		h.t.Fatalf("Logs: %v", err)
	}
	return lines
}

func (h *harness) selectJob(id string) {
	h.t.Helper()
	if err := h.p.Select(id); err != nil {
		h.t.Fatalf("Select(%s): %v", id, err)
	}
}

// answerStatus replies to the latest get_job_status request. The snapshot
// afterwards is a barrier: the reply has been routed once it returns.
func (h *harness) answerStatus(st models.JobStatus) {
	h.t.Helper()
	r := h.ch.lastRequest(h.t)
	h.ch.pushReply(h.t, models.EventJobStatus, st, r.ID())
	h.snapshot()
}

func job(id string) models.ImportJob {
	return models.ImportJob{ID: id, ImportConfigID: testConfig, RunAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), RunBy: "admin"}
}

func line(msg string) models.LogLine {
	return models.LogLine{Level: "info", Message: msg, Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func record(typ models.RecordType, id string) models.FinishedRecord {
	return models.FinishedRecord{Type: typ, Data: models.RecordData{ID: id, Name: id, Title: id}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
