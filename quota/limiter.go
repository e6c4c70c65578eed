package quota

import (
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"materna-backend/login"
)

// idle clients are forgotten after this long
const clientTTL = 30 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter throttles the report generation flows per caller. Callers are
// keyed by authenticated patient id when present, client IP otherwise.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rate    rate.Limit
	burst   int
	now     func() time.Time
}

// NewLimiter allows perMinute requests per caller with an equal burst.
// perMinute <= 0 disables limiting.
func NewLimiter(perMinute int) *Limiter {
	l := &Limiter{clients: map[string]*client{}, burst: perMinute, now: time.Now}
	if perMinute > 0 {
		l.rate = rate.Limit(float64(perMinute) / 60)
	}
	return l
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, c := range l.clients {
		if now.Sub(c.lastSeen) > clientTTL {
			delete(l.clients, k)
		}
	}
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

// Middleware rejects over-limit requests of flow with 429 and Retry-After.
func (l *Limiter) Middleware(flow string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.burst <= 0 {
			c.Next()
			return
		}
		key := login.PatientID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		r := l.get(key).ReserveN(l.now(), 1)
		if !r.OK() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		if d := r.DelayFrom(l.now()); d > 0 {
			r.CancelAt(l.now())
			log.Printf("[quota][deny] flow=%s client=%s retry_after=%s", flow, key, d.Round(time.Second))
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
