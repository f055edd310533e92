// ABOUTME: Sliding-window suppression of repeated context-menu events
// ABOUTME: Remembers recently shown texts so a double-fired menu click opens one surface

package dedupe

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

type entry struct {
	at   time.Time
	elem *list.Element
}

// Window reports whether a key was already accepted within the last window.
// It holds at most maxKeys entries; the oldest is forgotten first.
type Window struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // keys, oldest at front
	window  time.Duration
	maxKeys int
	now     func() time.Time

	done   chan struct{}
	closed bool
}

// NewWindow creates a Window and starts a sweeper that drops expired keys.
// Call Close to stop it.
func NewWindow(window time.Duration, maxKeys int) *Window {
	if maxKeys <= 0 {
		maxKeys = 256
	}
	w := &Window{
		entries: make(map[string]*entry),
		order:   list.New(),
		window:  window,
		maxKeys: maxKeys,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if window > 0 {
		go w.sweep()
	}
	return w
}

// Key normalises menu text so whitespace and case differences count as the same event.
func Key(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Accept records key and reports true if it was not seen within the window.
// A repeated key inside the window is rejected and does not extend the window.
func (w *Window) Accept(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if e, ok := w.entries[key]; ok {
		if now.Sub(e.at) < w.window {
			return false
		}
		e.at = now
		w.order.MoveToBack(e.elem)
		return true
	}

	if len(w.entries) >= w.maxKeys {
		if front := w.order.Front(); front != nil {
			delete(w.entries, front.Value.(string))
			w.order.Remove(front)
		}
	}
	w.entries[key] = &entry{at: now, elem: w.order.PushBack(key)}
	return true
}

// Len returns the number of remembered keys.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func (w *Window) sweep() {
	ticker := time.NewTicker(w.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.expire()
		case <-w.done:
			return
		}
	}
}

// expire drops keys older than the window.
func (w *Window) expire() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for e := w.order.Front(); e != nil; {
		next := e.Next()
		key := e.Value.(string)
		if now.Sub(w.entries[key].at) < w.window {
			break
		}
		w.order.Remove(e)
		delete(w.entries, key)
		e = next
	}
}

// Close stops the sweeper. It is safe to call multiple times.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		close(w.done)
		w.closed = true
	}
}
