package panel

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"import_panel/internal/channel"
	"import_panel/internal/logger"
	"import_panel/internal/metrics"
	"import_panel/internal/models"
)

// Panel states.
const (
	StateDisconnected = "disconnected"
	StateConnected    = "connected"    // no job selected
	StateJobSelected  = "job_selected" // events of one job populate the buffers
)

const (
	defaultFlushInterval = 300 * time.Millisecond
	defaultWatchBuffer   = 64
)

var (
	ErrClosed        = errors.New("panel: closed")
	ErrNoJobSelected = errors.New("panel: no job selected")
	ErrUnknownJob    = errors.New("panel: job is not running")
	ErrNotConnected  = errors.New("panel: event channel is not connected")
)

// Options configures Mount.
type Options struct {
	ImportConfigID string
	Dial           DialFunc
	FlushInterval  time.Duration
	LogCap         int
	ScrollEpsilon  float64
	Viewport       Viewport
	// OnJobStopped runs on the panel goroutine when the selected job stops,
	// with the buffers as they were at that moment.
	OnJobStopped func(StoppedJob)
	Log          *logger.Logger
}

// StoppedJob is what the operator was looking at when the selected job ended.
type StoppedJob struct {
	Job       models.ImportJob
	Progress  models.ImportProgress
	Logs      []models.LogLine
	Finished  []models.FinishedRecord
	StoppedAt time.Time
}

// Snapshot is a consistent copy of the panel state.
type Snapshot struct {
	ImportConfigID string                    `json:"import_config_id"`
	State          string                    `json:"state"`
	SelectedJob    *models.ImportJob         `json:"selected_job,omitempty"`
	RunningJobs    []models.ImportJob        `json:"running_jobs"`
	Progress       models.ImportProgress     `json:"progress"`
	Percent        int                       `json:"percent"`
	LogLines       int                       `json:"log_lines"`
	LogDropped     int                       `json:"log_dropped"`
	PendingLogs    int                       `json:"pending_logs"`
	Records        map[models.RecordType]int `json:"records"`
	AtBottom       bool                      `json:"at_bottom"`
	Error          string                    `json:"error,omitempty"`
}

// Panel is one mounted import-status panel. All state is owned by a single
// goroutine; public methods hand work to it and wait.
type Panel struct {
	cfgID    string
	opts     Options
	log      *logger.Logger
	ch       Channel
	state    string
	lastErr  string
	selected models.ImportJob // zero ID means none
	jobs     *JobSet
	progress models.ImportProgress
	logs     *LogBuffer
	records  RecordTable

	flushTimer *time.Timer
	flushC     <-chan time.Time

	// In-flight get_job_status for statusJob; nil when none.
	statusCall Call
	statusJob  string

	cmds     chan func()
	watchers watchers

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Mount opens the channel and starts the panel. A failed dial (including a
// failed token exchange) leaves the panel disconnected with no running jobs;
// it is not retried.
func Mount(ctx context.Context, opts Options) (*Panel, error) {
	if opts.ImportConfigID == "" {
		return nil, errors.New("panel: import config id is required")
	}
	if opts.Dial == nil {
		return nil, errors.New("panel: dial func is required")
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}

	pctx, cancel := context.WithCancel(context.Background())
	p := &Panel{
		cfgID:  opts.ImportConfigID,
		opts:   opts,
		log:    logger.OrNop(opts.Log).With("import_config_id", opts.ImportConfigID),
		state:  StateDisconnected,
		jobs:   newJobSet(),
		logs:   NewLogBuffer(opts.LogCap, opts.ScrollEpsilon, opts.Viewport),
		cmds:   make(chan func()),
		ctx:    pctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	ch, err := opts.Dial(ctx)
	if err != nil {
		p.log.Warnw("panel_channel_unavailable", "err", err)
		p.lastErr = err.Error()
	} else {
		p.ch = ch
	}
	metrics.PanelMounted(1)
	go p.run()
	return p, nil
}

// Close unmounts the panel: unsubscribes, closes the channel and ends all
// watchers. Safe to call more than once.
func (p *Panel) Close() error {
	p.cancel()
	<-p.done
	return nil
}

// Select switches the panel to jobID: the previous job is unsubscribed, the
// buffers are cleared and then replaced by the new job's status snapshot.
func (p *Panel) Select(jobID string) error {
	var err error
	if derr := p.do(func() { err = p.selectJob(jobID) }); derr != nil {
		return derr
	}
	return err
}

// Stop asks the server to stop the selected job. State changes only when the
// matching job_stopped event arrives.
func (p *Panel) Stop() error {
	var err error
	if derr := p.do(func() {
		switch {
		case p.selected.ID == "":
			err = ErrNoJobSelected
		case p.ch == nil || p.state == StateDisconnected:
			err = ErrNotConnected
		default:
			err = p.ch.Emit(models.EventStopJob, models.JobRef{JobID: p.selected.ID})
		}
	}); derr != nil {
		return derr
	}
	return err
}

// Snapshot returns the current state.
func (p *Panel) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := p.do(func() { s = p.snapshot() })
	return s, err
}

// Logs returns rendered lines from absolute position from, plus the next position.
func (p *Panel) Logs(from int) ([]models.LogLine, int, error) {
	var (
		lines []models.LogLine
		next  int
	)
	err := p.do(func() { lines, next = p.logs.Since(from) })
	return lines, next, err
}

// Records returns one filtered page of finished records.
func (p *Panel) Records(typ models.RecordType, page, perPage int) (RecordPage, error) {
	var rp RecordPage
	err := p.do(func() { rp = p.records.Page(typ, page, perPage) })
	return rp, err
}

// Watch subscribes to incremental updates. The returned snapshot and the
// first update are consistent: nothing happens between them.
func (p *Panel) Watch(buffer int) (<-chan Update, Snapshot, func(), error) {
	if buffer <= 0 {
		buffer = defaultWatchBuffer
	}
	var (
		id   int
		ch   chan Update
		snap Snapshot
	)
	if err := p.do(func() {
		id, ch = p.watchers.add(buffer)
		snap = p.snapshot()
	}); err != nil {
		return nil, Snapshot{}, func() {}, err
	}
	return ch, snap, func() { p.watchers.remove(id) }, nil
}

// Done is closed once the panel has been torn down.
func (p *Panel) Done() <-chan struct{} { return p.done }

// do runs fn on the panel goroutine and waits for it.
func (p *Panel) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case p.cmds <- func() { fn(); close(finished) }:
	case <-p.done:
		return ErrClosed
	}
	<-finished
	return nil
}

func (p *Panel) run() {
	defer close(p.done)
	var events <-chan models.Frame
	if p.ch != nil {
		events = p.ch.Events()
	}
	for {
		select {
		case <-p.ctx.Done():
			p.teardown()
			return
		case f, ok := <-events:
			if !ok {
				events = nil
				p.onDisconnected()
				continue
			}
			p.route(f)
		case fn := <-p.cmds:
			fn()
		case <-p.flushC:
			p.flush()
		}
	}
}

func (p *Panel) teardown() {
	p.stopFlushTimer()
	p.cancelStatus()
	if p.ch != nil {
		if p.selected.ID != "" && p.state != StateDisconnected {
			if err := p.ch.Emit(models.EventUnsubscribe, models.JobRef{JobID: p.selected.ID}); err != nil {
				p.log.Debugw("panel_unsubscribe_failed", "job_id", p.selected.ID, "err", err)
			}
		}
		if err := p.ch.Close(); err != nil {
			p.log.Warnw("panel_channel_close_failed", "err", err)
		}
	}
	p.watchers.closeAll()
	metrics.PanelMounted(-1)
	p.log.Debugw("panel_unmounted")
}

func (p *Panel) route(f models.Frame) {
	switch f.Event {
	case channel.EventConnected:
		p.onConnected()
	case channel.EventDisconnected:
		p.onDisconnected()
	case models.EventRunningJobs:
		var pl models.RunningJobsPayload
		if p.decode(f, &pl) {
			p.onRunningJobs(pl)
		}
	case models.EventJobStarted:
		var pl models.JobEventPayload
		if p.decode(f, &pl) {
			p.onJobStarted(pl)
		}
	case models.EventJobStopped:
		var pl models.JobEventPayload
		if p.decode(f, &pl) {
			p.onJobStopped(pl)
		}
	case models.EventProgressUpdate:
		var pl models.ProgressPayload
		if p.decode(f, &pl) && p.isSelected(pl.JobID) {
			p.progress = pl.ImportProgress
			pr := p.progress
			p.watchers.publish(Update{Type: UpdateProgress, Progress: &pr})
		}
	case models.EventLogMessage:
		var pl models.LogPayload
		if p.decode(f, &pl) && p.isSelected(pl.JobID) {
			p.logs.Push(pl.LogLine)
			p.armFlush()
		}
	case models.EventFinishOne:
		var pl models.FinishOnePayload
		if p.decode(f, &pl) && p.isSelected(pl.JobID) {
			p.records.Append(pl.FinishedRecord)
			p.watchers.publish(Update{Type: UpdateRecord, Records: []models.FinishedRecord{pl.FinishedRecord}})
		}
	case models.EventJobStatus:
		p.onJobStatus(f)
	default:
		p.log.Debugw("panel_unknown_event", "event", f.Event)
	}
}

func (p *Panel) decode(f models.Frame, dst any) bool {
	if err := json.Unmarshal(f.Data, dst); err != nil {
		p.log.Warnw("panel_bad_payload", "event", f.Event, "err", err)
		return false
	}
	return true
}

func (p *Panel) isSelected(jobID string) bool {
	return jobID != "" && jobID == p.selected.ID
}

func (p *Panel) onConnected() {
	p.lastErr = ""
	if p.selected.ID != "" {
		p.state = StateJobSelected
	} else {
		p.state = StateConnected
	}
	if err := p.ch.Emit(models.EventGetRunningJobs, models.ConfigRef{ImportConfigID: p.cfgID}); err != nil {
		p.log.Warnw("panel_get_running_jobs_failed", "err", err)
	}
	if p.selected.ID != "" {
		// Replay after a reconnect: the snapshot replaces whatever was missed.
		p.subscribe()
	}
	p.publishState()
}

func (p *Panel) onDisconnected() {
	if p.state == StateDisconnected {
		return
	}
	p.state = StateDisconnected
	p.cancelStatus()
	p.publishState()
}

func (p *Panel) onRunningJobs(pl models.RunningJobsPayload) {
	if pl.ImportConfigID != "" && pl.ImportConfigID != p.cfgID {
		return
	}
	jobs := make([]models.ImportJob, 0, len(pl.Jobs))
	for _, j := range pl.Jobs {
		if j.ImportConfigID == "" || j.ImportConfigID == p.cfgID {
			jobs = append(jobs, j)
		}
	}
	p.jobs.Replace(jobs)
	p.publishState()
}

func (p *Panel) onJobStarted(pl models.JobEventPayload) {
	job := models.ImportJob{ID: pl.JobID, ImportConfigID: pl.ImportConfigID}
	if pl.Job != nil {
		job = *pl.Job
		if job.ID == "" {
			job.ID = pl.JobID
		}
		if job.ImportConfigID == "" {
			job.ImportConfigID = pl.ImportConfigID
		}
	}
	if job.ID == "" || job.ImportConfigID != p.cfgID {
		return
	}
	p.jobs.Add(job)
	if p.selected.ID == "" {
		if err := p.selectJob(job.ID); err != nil {
			p.log.Warnw("panel_auto_select_failed", "job_id", job.ID, "err", err)
		}
		return
	}
	p.publishState()
}

func (p *Panel) onJobStopped(pl models.JobEventPayload) {
	p.jobs.Remove(pl.JobID)
	if !p.isSelected(pl.JobID) {
		p.publishState()
		return
	}
	// Render what already arrived before the selection goes away.
	p.flush()
	p.cancelStatus()
	stopped := StoppedJob{
		Job:       p.selected,
		Progress:  p.progress,
		Logs:      p.logs.Lines(),
		Finished:  p.records.All(),
		StoppedAt: time.Now().UTC(),
	}
	stopped.Job.IsRunning = false
	p.selected = models.ImportJob{}
	if p.state != StateDisconnected {
		p.state = StateConnected
	}
	if p.opts.OnJobStopped != nil {
		p.opts.OnJobStopped(stopped)
	}
	p.publishState()
}

func (p *Panel) selectJob(jobID string) error {
	if p.ch == nil || p.state == StateDisconnected {
		return ErrNotConnected
	}
	job, ok := p.jobs.Get(jobID)
	if !ok {
		return ErrUnknownJob
	}
	if job.ID == p.selected.ID {
		return nil
	}
	if prev := p.selected.ID; prev != "" {
		if err := p.ch.Emit(models.EventUnsubscribe, models.JobRef{JobID: prev}); err != nil {
			p.log.Warnw("panel_unsubscribe_failed", "job_id", prev, "err", err)
		}
	}
	p.cancelStatus()
	p.stopFlushTimer()
	p.selected = job
	p.state = StateJobSelected
	p.progress = models.ImportProgress{}
	p.logs.Reset()
	p.records.Reset()
	p.watchers.publish(Update{Type: UpdateReset, Logs: []models.LogLine{}, Records: []models.FinishedRecord{}, Progress: &models.ImportProgress{}})
	p.subscribe()
	p.publishState()
	return nil
}

// subscribe emits subscribe for the selected job and requests its status
// snapshot. The reply comes back through route in transport order, so
// events the server sends after it are applied on top of the snapshot.
func (p *Panel) subscribe() {
	jobID := p.selected.ID
	if err := p.ch.Emit(models.EventSubscribe, models.JobRef{JobID: jobID}); err != nil {
		p.log.Warnw("panel_subscribe_failed", "job_id", jobID, "err", err)
		return
	}
	p.cancelStatus()
	call, err := p.ch.Request(models.EventGetJobStatus, models.JobRef{JobID: jobID})
	if err != nil {
		p.log.Warnw("panel_job_status_request_failed", "job_id", jobID, "err", err)
		return
	}
	p.statusCall = call
	p.statusJob = jobID
}

// cancelStatus abandons the in-flight status request, if any.
func (p *Panel) cancelStatus() {
	if p.statusCall != nil {
		p.statusCall.Cancel()
		p.statusCall = nil
	}
	p.statusJob = ""
}

func (p *Panel) onJobStatus(f models.Frame) {
	if p.statusCall == nil || f.RequestID != p.statusCall.ID() {
		p.log.Debugw("panel_stale_job_status", "request_id", f.RequestID)
		return
	}
	jobID := p.statusJob
	p.statusCall = nil
	p.statusJob = ""
	if jobID != p.selected.ID {
		return
	}

	var st models.JobStatus
	if !p.decode(f, &st) {
		return
	}
	if st.JobID != "" && st.JobID != jobID {
		return
	}

	atBottom := p.logs.AtBottom()
	p.stopFlushTimer()
	p.progress = st.Progress
	p.logs.Replace(st.Logs)
	p.records.Replace(st.Finished)

	lines, _ := p.logs.Since(0)
	pr := p.progress
	p.watchers.publish(Update{
		Type:       UpdateReset,
		Progress:   &pr,
		Logs:       lines,
		Records:    p.records.All(),
		AutoScroll: atBottom,
		Dropped:    p.logs.Dropped(),
	})
	if atBottom {
		p.logs.viewport.ScrollToBottom()
	}
	p.publishState()
}

func (p *Panel) armFlush() {
	if p.flushTimer != nil {
		return
	}
	p.flushTimer = time.NewTimer(p.opts.FlushInterval)
	p.flushC = p.flushTimer.C
}

func (p *Panel) stopFlushTimer() {
	if p.flushTimer != nil {
		p.flushTimer.Stop()
	}
	p.flushTimer = nil
	p.flushC = nil
}

func (p *Panel) flush() {
	p.stopFlushTimer()
	res := p.logs.Flush(func(r FlushResult) {
		p.watchers.publish(Update{
			Type:       UpdateLogs,
			Logs:       append([]models.LogLine(nil), r.Lines...),
			AutoScroll: r.AutoScroll,
			Dropped:    r.Dropped,
		})
	})
	metrics.LogLinesFlushed(len(res.Lines))
}

func (p *Panel) publishState() {
	s := p.snapshot()
	p.watchers.publish(Update{Type: UpdateState, State: &s})
}

func (p *Panel) snapshot() Snapshot {
	s := Snapshot{
		ImportConfigID: p.cfgID,
		State:          p.state,
		RunningJobs:    p.jobs.Options(),
		Progress:       p.progress,
		Percent:        p.progress.Percent(),
		LogLines:       p.logs.Len(),
		LogDropped:     p.logs.Dropped(),
		PendingLogs:    p.logs.Pending(),
		Records:        p.records.Counts(),
		AtBottom:       p.logs.AtBottom(),
		Error:          p.lastErr,
	}
	if p.selected.ID != "" {
		j := p.selected
		s.SelectedJob = &j
	}
	return s
}
