package panel

import (
	"sync"

	"import_panel/internal/models"
)

// Update kinds pushed to watchers.
const (
	UpdateState    = "state"    // selection, running jobs or connection changed
	UpdateProgress = "progress" // progress replaced
	UpdateLogs     = "logs"     // one flush worth of lines
	UpdateRecord   = "record"   // one finished record appended
	UpdateReset    = "reset"    // buffers replaced by a status snapshot or cleared
)

// Update is one incremental change for renderers.
type Update struct {
	Type       string                  `json:"type"`
	State      *Snapshot               `json:"state,omitempty"`
	Progress   *models.ImportProgress  `json:"progress,omitempty"`
	Logs       []models.LogLine        `json:"logs,omitempty"`
	Records    []models.FinishedRecord `json:"records,omitempty"`
	AutoScroll bool                    `json:"autoscroll,omitempty"`
	Dropped    int                     `json:"dropped,omitempty"`
}

// watchers fans updates out without blocking the panel loop; a watcher
// that falls behind is closed and must resync from a snapshot.
type watchers struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Update
}

func (w *watchers) add(buffer int) (int, chan Update) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.subs == nil {
		w.subs = make(map[int]chan Update)
	}
	w.next++
	ch := make(chan Update, buffer)
	w.subs[w.next] = ch
	return w.next, ch
}

func (w *watchers) remove(id int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ch, ok := w.subs[id]; ok {
		delete(w.subs, id)
		close(ch)
	}
}

func (w *watchers) publish(u Update) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ch := range w.subs {
		select {
		case ch <- u:
		default:
			delete(w.subs, id)
			close(ch)
		}
	}
}

func (w *watchers) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ch := range w.subs {
		delete(w.subs, id)
		close(ch)
	}
}
