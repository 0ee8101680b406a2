package httpx

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitProfile describes a token-bucket allowance for one endpoint
// class. Rate is tokens per second; Burst is the bucket depth.
type RateLimitProfile struct {
	Name  string
	Rate  rate.Limit
	Burst int
}

// Profiles in ascending order of generosity. Credential endpoints get
// Strict, ticket/recovery flows get Moderate, everything else Lenient.
var (
	ProfileStrict   = RateLimitProfile{Name: "strict", Rate: rate.Limit(0.5), Burst: 5}
	ProfileModerate = RateLimitProfile{Name: "moderate", Rate: rate.Limit(2), Burst: 10}
	ProfileLenient  = RateLimitProfile{Name: "lenient", Rate: rate.Limit(10), Burst: 30}
)

// WithEnvOverrides returns the profile adjusted by AUTH_RATE_<NAME>_RPS and
// AUTH_RATE_<NAME>_BURST when set, so operators can tune limits without a
// rebuild.
func (p RateLimitProfile) WithEnvOverrides() RateLimitProfile {
	prefix := "AUTH_RATE_" + upper(p.Name)
	if v, err := strconv.ParseFloat(os.Getenv(prefix+"_RPS"), 64); err == nil && v > 0 {
		p.Rate = rate.Limit(v)
	}
	if v, err := strconv.Atoi(os.Getenv(prefix + "_BURST")); err == nil && v > 0 {
		p.Burst = v
	}
	return p
}

func upper(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}

// KeyExtractor derives the bucket key for a request.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor buckets by client IP, ignoring the ephemeral port.
func IPKeyExtractor(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// UserKeyExtractor buckets by authenticated user id, falling back to the
// client IP for anonymous requests.
func UserKeyExtractor(r *http.Request) string {
	if id := UserID(r.Context()); id != "" {
		return "user:" + id
	}
	return "ip:" + IPKeyExtractor(r)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry

	profile RateLimitProfile
	extract KeyExtractor
}

// idle entries are evicted so long-running processes do not accumulate a
// bucket per client ever seen.
const limiterTTL = 10 * time.Minute

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, ok := rl.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.profile.Rate, rl.profile.Burst)}
		rl.entries[key] = entry
	}
	entry.lastSeen = now

	if len(rl.entries) > 1024 {
		for k, e := range rl.entries {
			if now.Sub(e.lastSeen) > limiterTTL {
				delete(rl.entries, k)
			}
		}
	}

	return entry.limiter.Allow()
}

// RateLimit returns a middleware enforcing the profile per extracted key.
// Rejected requests get 429 with a Retry-After hint.
func RateLimit(profile RateLimitProfile, extract KeyExtractor) Middleware {
	rl := &rateLimiter{
		entries: make(map[string]*limiterEntry),
		profile: profile,
		extract: extract,
	}

	retryAfter := strconv.Itoa(int(1/float64(profile.Rate)) + 1)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(rl.extract(r)) {
				w.Header().Set("Retry-After", retryAfter)
				WriteError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
