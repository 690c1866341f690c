package httpserver

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepInterval is how often full buckets are dropped.
const sweepInterval = time.Minute

// UploadLimits configures an UploadLimiter. A non-positive RPS disables that scope.
type UploadLimits struct {
	// ClientRPS and ClientBurst bound uploads per remote address. They are
	// checked before the request body is read.
	ClientRPS   float64
	ClientBurst int

	// FingerprintRPS and FingerprintBurst bound uploads per bundle fingerprint.
	FingerprintRPS   float64
	FingerprintBurst int
}

// UploadLimiter throttles uploads per client address and per fingerprint.
// A nil limiter allows everything.
type UploadLimiter struct {
	clients      *bucketSet
	fingerprints *bucketSet
}

// NewUploadLimiter returns nil when both scopes are disabled.
func NewUploadLimiter(limits UploadLimits) *UploadLimiter {
	clients := newBucketSet(limits.ClientRPS, limits.ClientBurst)
	fingerprints := newBucketSet(limits.FingerprintRPS, limits.FingerprintBurst)
	if clients == nil && fingerprints == nil {
		return nil
	}
	return &UploadLimiter{clients: clients, fingerprints: fingerprints}
}

// AllowClient reports whether the remote address may start another upload at now.
func (l *UploadLimiter) AllowClient(addr string, now time.Time) bool {
	if l == nil {
		return true
	}
	return l.clients.allow(addr, now)
}

// AllowFingerprint reports whether another bundle for fingerprint may be processed at now.
func (l *UploadLimiter) AllowFingerprint(fingerprint string, now time.Time) bool {
	if l == nil {
		return true
	}
	return l.fingerprints.allow(fingerprint, now)
}

// clientAddr is the host part of the request's remote address.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// bucketSet holds one token bucket per key. A bucket that has refilled
// completely behaves like a new one, so sweeps drop those.
type bucketSet struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	nextSweep time.Time
}

func newBucketSet(rps float64, burst int) *bucketSet {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &bucketSet{
		limit:   rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (b *bucketSet) allow(key string, now time.Time) bool {
	if b == nil {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if now.After(b.nextSweep) {
		for k, lim := range b.buckets {
			if lim.TokensAt(now) >= float64(b.burst) {
				delete(b.buckets, k)
			}
		}
		b.nextSweep = now.Add(sweepInterval)
	}

	lim, ok := b.buckets[key]
	if !ok {
		lim = rate.NewLimiter(b.limit, b.burst)
		b.buckets[key] = lim
	}
	return lim.AllowN(now, 1)
}

func (b *bucketSet) size() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buckets)
}
