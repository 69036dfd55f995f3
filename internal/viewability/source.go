package viewability

import "sync"

// Feed is a Source that fans out ratios pushed by a host, for example the
// visibility messages arriving over a slot socket. The last ratio is replayed
// to new subscribers.
type Feed struct {
	mu    sync.Mutex
	next  int
	subs  map[int]func(float64)
	last  float64
	known bool
}

// NewFeed returns a Feed with no subscribers.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]func(float64))}
}

// Subscribe registers fn and replays the last known ratio, if any.
func (f *Feed) Subscribe(fn func(ratio float64)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	last, known := f.last, f.known
	f.mu.Unlock()

	if known {
		fn(last)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Push delivers ratio to every current subscriber. Ratios are clamped to [0,1].
func (f *Feed) Push(ratio float64) {
	if ratio < 0 {
		ratio = 0
	} else if ratio > 1 {
		ratio = 1
	}
	f.mu.Lock()
	f.last, f.known = ratio, true
	fns := make([]func(float64), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(ratio)
	}
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
