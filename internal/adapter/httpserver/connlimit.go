package httpserver

import (
	"sync"
)

// limitReason names the limit that turned a stream connection away.
type limitReason string

const (
	limitReasonGlobal limitReason = "global_limit"
	limitReasonPerIP  limitReason = "per_ip_limit"
)

// connectionLimits caps concurrent raw stream connections per instance and per client address.
// The per-session cap lives in the broadcaster.
type connectionLimits struct {
	mu     sync.Mutex
	total  int
	max    int
	perIP  map[string]int
	maxPer int
}

func newConnectionLimits(max, maxPerIP int) *connectionLimits {
	return &connectionLimits{max: max, maxPer: maxPerIP, perIP: make(map[string]int)}
}

// acquire reserves a slot for ip. On success the caller must call release.
func (l *connectionLimits) acquire(ip string) (bool, limitReason) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.max {
		return false, limitReasonGlobal
	}
	if l.perIP[ip] >= l.maxPer {
		return false, limitReasonPerIP
	}
	l.total++
	l.perIP[ip]++
	return true, ""
}

func (l *connectionLimits) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.perIP[ip] == 0 {
		return
	}
	l.total--
	if l.perIP[ip]--; l.perIP[ip] == 0 {
		delete(l.perIP, ip)
	}
}

func (l *connectionLimits) current() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
