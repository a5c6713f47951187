package api

import (
	"testing"
	"time"

	"github.com/littlewalk/go-walk/models"
)

func TestWalkerLimiter(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := map[string]struct {
		walkerIds     []string
		offsets       []time.Duration
		expectedKinds []models.ErrorKind
	}{
		"burst then limited": {
			walkerIds:     []string{"w1", "w1", "w1"},
			offsets:       []time.Duration{0, 0, 0},
			expectedKinds: []models.ErrorKind{models.ErrorKind_None, models.ErrorKind_None, models.ErrorKind_RateLimited},
		},
		"refills over time": {
			walkerIds:     []string{"w1", "w1", "w1", "w1"},
			offsets:       []time.Duration{0, 0, 0, time.Second},
			expectedKinds: []models.ErrorKind{models.ErrorKind_None, models.ErrorKind_None, models.ErrorKind_RateLimited, models.ErrorKind_None},
		},
		"buckets are per walker": {
			walkerIds:     []string{"w1", "w1", "w1", "w2"},
			offsets:       []time.Duration{0, 0, 0, 0},
			expectedKinds: []models.ErrorKind{models.ErrorKind_None, models.ErrorKind_None, models.ErrorKind_RateLimited, models.ErrorKind_None},
		},
		"missing walker": {
			walkerIds:     []string{""},
			offsets:       []time.Duration{0},
			expectedKinds: []models.ErrorKind{models.ErrorKind_Validation},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			limiter := NewWalkerLimiter(1, 2, time.Minute)
			for idx, walkerId := range test.walkerIds {
				err := limiter.Allow(walkerId, start.Add(test.offsets[idx]))
				if kind := models.KindOf(err); kind != test.expectedKinds[idx] {
					t.Errorf("sample %d: unexpected result: found=%q, expected=%q", idx, kind, test.expectedKinds[idx])
				}
			}
		})
	}
}

func TestWalkerLimiterEvictsIdleWalkers(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewWalkerLimiter(1, 1, time.Minute)
	if err := limiter.Allow("w1", start); err != nil {
		t.Fatalf("unexpected error received %v", err)
	}
	if err := limiter.Allow("w2", start.Add(30*time.Second)); err != nil {
		t.Fatalf("unexpected error received %v", err)
	}
	if tracked := limiter.tracked(); tracked != 2 {
		t.Errorf("unexpected number of tracked walkers: %d", tracked)
	}

	// w1 went idle past the TTL, w2 did not.
	if err := limiter.Allow("w3", start.Add(75*time.Second)); err != nil {
		t.Fatalf("unexpected error received %v", err)
	}
	if tracked := limiter.tracked(); tracked != 2 {
		t.Errorf("idle walker should have been evicted, tracking %d", tracked)
	}
	// An evicted walker starts over with a full bucket.
	if err := limiter.Allow("w1", start.Add(76*time.Second)); err != nil {
		t.Errorf("unexpected error received %v", err)
	}
}

func TestNilWalkerLimiterAllowsEverything(t *testing.T) {
	var limiter *WalkerLimiter
	for i := 0; i < 3; i++ {
		if err := limiter.Allow("w1", time.Now()); err != nil {
			t.Errorf("unexpected error received %v", err)
		}
	}
}

func (l *WalkerLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.walkers)
}
