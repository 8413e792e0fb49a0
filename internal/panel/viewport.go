package panel

import "sync"

// ScrollMetrics describes where a rendering viewport is scrolled to.
type ScrollMetrics struct {
	ScrollTop    float64 `json:"scroll_top"`
	ScrollHeight float64 `json:"scroll_height"`
	ClientHeight float64 `json:"client_height"`
}

// DistanceToBottom is how far (in the viewport's units) the bottom edge is
// from the end of the content. Negative values (overscroll) count as zero.
func (m ScrollMetrics) DistanceToBottom() float64 {
	d := m.ScrollHeight - m.ScrollTop - m.ClientHeight
	if d < 0 {
		return 0
	}
	return d
}

// Viewport is whatever renders the log lines.
type Viewport interface {
	Metrics() ScrollMetrics
	ScrollToBottom()
}

// FollowViewport is always at the bottom; terminals tail the log.
type FollowViewport struct{}

func (FollowViewport) Metrics() ScrollMetrics { return ScrollMetrics{} }
func (FollowViewport) ScrollToBottom()        {}

// RemoteViewport mirrors a browser viewport reported over the dashboard
// socket. The browser performs the actual scroll when told to autoscroll.
type RemoteViewport struct {
	mu sync.Mutex
	m  ScrollMetrics
}

// Report stores the latest metrics sent by the browser.
func (v *RemoteViewport) Report(m ScrollMetrics) {
	v.mu.Lock()
	v.m = m
	v.mu.Unlock()
}

func (v *RemoteViewport) Metrics() ScrollMetrics {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.m
}

// ScrollToBottom assumes the browser follows the autoscroll hint; the next
// Report corrects this if it did not.
func (v *RemoteViewport) ScrollToBottom() {
	v.mu.Lock()
	v.m.ScrollTop = v.m.ScrollHeight - v.m.ClientHeight
	if v.m.ScrollTop < 0 {
		v.m.ScrollTop = 0
	}
	v.mu.Unlock()
}
