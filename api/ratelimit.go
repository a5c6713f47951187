package api

import (
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/littlewalk/go-walk/models"
)

// WalkerLimiter paces location samples with one token bucket per walker. Buckets of walkers that stopped sending
// for longer than the idle TTL are dropped on the next sweep, at most once per TTL.
type WalkerLimiter struct {
	sampleRate rate.Limit
	burst      int
	idleTtl    time.Duration
	mu         sync.Mutex
	walkers    map[string]*walkerBucket
	lastSweep  time.Time
}

type walkerBucket struct {
	limiter    *rate.Limiter
	lastSample time.Time
}

func NewWalkerLimiter(samplesPerSecond float64, burst int, idleTtl time.Duration) *WalkerLimiter {
	return &WalkerLimiter{
		sampleRate: rate.Limit(samplesPerSecond),
		burst:      burst,
		idleTtl:    idleTtl,
		walkers:    make(map[string]*walkerBucket),
	}
}

func NewWalkerLimiterFromEnv() *WalkerLimiter {
	samplesPerSecond := models.DefaultLocationRateLimit
	if configRate, found := os.LookupEnv(models.Env_LocationRateLimit); found {
		if parsedRate, err := strconv.ParseFloat(configRate, 64); err == nil && parsedRate > 0 {
			samplesPerSecond = parsedRate
		}
	}
	burst := models.DefaultLocationRateBurst
	if configBurst, found := os.LookupEnv(models.Env_LocationRateBurst); found {
		if parsedBurst, err := strconv.Atoi(configBurst); err == nil && parsedBurst > 0 {
			burst = parsedBurst
		}
	}
	idleTtl := models.DefaultLocationRateIdleTtl
	if configIdleTtl, found := os.LookupEnv(models.Env_LocationRateIdleTtl); found {
		if parsedIdleTtl, err := time.ParseDuration(configIdleTtl); err == nil && parsedIdleTtl > 0 {
			idleTtl = parsedIdleTtl
		}
	}
	return NewWalkerLimiter(samplesPerSecond, burst, idleTtl)
}

// Allow takes a token from the walker's bucket, returning ErrRateLimited when it is empty. A missing walker is a
// validation error. A nil limiter allows everything.
func (l *WalkerLimiter) Allow(walkerId string, now time.Time) error {
	if l == nil {
		return nil
	} else if len(walkerId) == 0 {
		return &models.ValidationError{Field: "actor", Reason: "missing actor id"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	bucket, found := l.walkers[walkerId]
	if !found {
		bucket = &walkerBucket{limiter: rate.NewLimiter(l.sampleRate, l.burst)}
		l.walkers[walkerId] = bucket
	}
	bucket.lastSample = now
	if !bucket.limiter.AllowN(now, 1) {
		return models.ErrRateLimited
	}
	return nil
}

func (l *WalkerLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTtl {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-l.idleTtl)
	for walkerId, bucket := range l.walkers {
		if bucket.lastSample.Before(cutoff) {
			delete(l.walkers, walkerId)
		}
	}
}
