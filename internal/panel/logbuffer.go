package panel

import "import_panel/internal/models"

// LogBuffer queues incoming log lines and moves them into the rendered
// sequence in one step per flush, preserving arrival order. The rendered
// sequence keeps at most capacity lines (0 = unbounded), dropping the oldest.
type LogBuffer struct {
	pending  []models.LogLine
	rendered []models.LogLine
	capacity int
	dropped  int
	epsilon  float64
	viewport Viewport
}

// FlushResult is what one flush rendered.
type FlushResult struct {
	Lines      []models.LogLine
	Dropped    int  // lines evicted from the head by this flush
	AutoScroll bool // viewport was at the bottom before the append
}

// NewLogBuffer builds a buffer. A nil viewport behaves like FollowViewport.
func NewLogBuffer(capacity int, epsilon float64, vp Viewport) *LogBuffer {
	if vp == nil {
		vp = FollowViewport{}
	}
	return &LogBuffer{capacity: capacity, epsilon: epsilon, viewport: vp}
}

// Push queues one line for the next flush.
func (b *LogBuffer) Push(line models.LogLine) {
	b.pending = append(b.pending, line)
}

// Pending is the number of queued lines.
func (b *LogBuffer) Pending() int { return len(b.pending) }

// AtBottom applies the scroll heuristic to the current viewport.
func (b *LogBuffer) AtBottom() bool {
	return b.viewport.Metrics().DistanceToBottom() <= b.epsilon
}

// Flush drains the whole pending queue into the rendered sequence. render,
// when non-nil, runs after the append and before the autoscroll.
func (b *LogBuffer) Flush(render func(FlushResult)) FlushResult {
	if len(b.pending) == 0 {
		return FlushResult{}
	}
	res := FlushResult{AutoScroll: b.AtBottom()}
	res.Lines = b.pending
	b.pending = nil

	b.rendered = append(b.rendered, res.Lines...)
	res.Dropped = b.trim()

	if render != nil {
		render(res)
	}
	if res.AutoScroll {
		b.viewport.ScrollToBottom()
	}
	return res
}

// Replace swaps the rendered sequence for lines (a status snapshot) and
// discards anything still queued.
func (b *LogBuffer) Replace(lines []models.LogLine) {
	b.pending = nil
	b.dropped = 0
	b.rendered = append([]models.LogLine(nil), lines...)
	b.trim()
}

// Reset empties the buffer.
func (b *LogBuffer) Reset() {
	b.pending = nil
	b.rendered = nil
	b.dropped = 0
}

// Len is the number of rendered lines currently held.
func (b *LogBuffer) Len() int { return len(b.rendered) }

// Dropped is the total number of lines evicted since the last reset.
func (b *LogBuffer) Dropped() int { return b.dropped }

// Since returns a copy of the held lines whose absolute position (counting
// evicted lines) is >= from, and the position to ask for next time.
func (b *LogBuffer) Since(from int) ([]models.LogLine, int) {
	next := b.dropped + len(b.rendered)
	idx := from - b.dropped
	if idx < 0 {
		idx = 0
	}
	if idx >= len(b.rendered) {
		return []models.LogLine{}, next
	}
	return append([]models.LogLine(nil), b.rendered[idx:]...), next
}

// Lines returns a copy of every held line.
func (b *LogBuffer) Lines() []models.LogLine {
	return append([]models.LogLine(nil), b.rendered...)
}

// trim enforces the capacity and reports how many lines it evicted.
func (b *LogBuffer) trim() int {
	if b.capacity <= 0 || len(b.rendered) <= b.capacity {
		return 0
	}
	over := len(b.rendered) - b.capacity
	b.dropped += over
	// Copy so the evicted head can be collected.
	kept := make([]models.LogLine, b.capacity, b.capacity+b.capacity/4)
	copy(kept, b.rendered[over:])
	b.rendered = kept
	return over
}
