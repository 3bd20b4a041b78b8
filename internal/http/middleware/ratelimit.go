package middleware

import (
	"sync"
	"time"
)

type clientInfo struct {
	last  time.Time
	count int
}

// localWindow is the in-process fixed window used when no Redis is configured.
type localWindow struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
	now     func() time.Time
}

func newLocalWindow() *localWindow {
	return &localWindow{clients: make(map[string]*clientInfo), now: time.Now}
}

// hit counts one request for key and returns the count inside the current window.
func (l *localWindow) hit(key string, window time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	ci, ok := l.clients[key]
	if !ok || now.Sub(ci.last) > window {
		l.clients[key] = &clientInfo{last: now, count: 1}
		l.sweep(now, window)
		return 1
	}
	ci.count++
	return ci.count
}

// sweep drops expired windows so the map does not grow without bound.
func (l *localWindow) sweep(now time.Time, window time.Duration) {
	if len(l.clients) < 10000 {
		return
	}
	for k, ci := range l.clients {
		if now.Sub(ci.last) > window {
			delete(l.clients, k)
		}
	}
}
