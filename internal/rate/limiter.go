package rate

import (
	"sync"
	"time"

	"geotiles/internal/geo"
)

// SpeedLimiter rejects marker positions that imply travelling faster than a
// configured speed since the previous position from the same client
type SpeedLimiter struct {
	lastPositions map[string]Position
	mu            sync.Mutex
	maxSpeedMs    float64
	now           func() time.Time
}

// Position represents a GPS position with timestamp
type Position struct {
	geo.GeoPoint
	Time time.Time
}

// NewSpeedLimiter creates a new speed limiter
func NewSpeedLimiter(maxSpeedKmh float64) *SpeedLimiter {
	return &SpeedLimiter{
		lastPositions: make(map[string]Position),
		maxSpeedMs:    maxSpeedKmh * 1000.0 / 3600.0, // Convert km/h to m/s
		now:           time.Now,
	}
}

// CheckSpeed returns true if the speed is within limits. The position is
// recorded either way.
func (s *SpeedLimiter) CheckSpeed(ip string, pos geo.GeoPoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	lastPos, exists := s.lastPositions[ip]
	s.lastPositions[ip] = Position{GeoPoint: pos, Time: now}
	if !exists {
		return true
	}

	distance := geo.Distance(lastPos.GeoPoint, pos)
	timeDiff := now.Sub(lastPos.Time).Seconds()
	if timeDiff <= 0 {
		return distance == 0
	}

	return distance/timeDiff <= s.maxSpeedMs
}

// Forget drops positions older than maxAge
func (s *SpeedLimiter) Forget(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	for ip, pos := range s.lastPositions {
		if pos.Time.Before(cutoff) {
			delete(s.lastPositions, ip)
		}
	}
}

// RateLimiter implements a sliding window rate limiter
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.RWMutex
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow returns true if the request is allowed
func (r *RateLimiter) Allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)

	// Remove old requests
	var validRequests []time.Time
	for _, reqTime := range r.requests[ip] {
		if reqTime.After(cutoff) {
			validRequests = append(validRequests, reqTime)
		}
	}

	if len(validRequests) >= r.limit {
		r.requests[ip] = validRequests
		return false
	}

	r.requests[ip] = append(validRequests, now)
	return true
}

// GetRemainingRequests returns the number of requests remaining in the window
func (r *RateLimiter) GetRemainingRequests(ip string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := r.now().Add(-r.window)

	validCount := 0
	for _, reqTime := range r.requests[ip] {
		if reqTime.After(cutoff) {
			validCount++
		}
	}

	return r.limit - validCount
}

// Prune drops clients with no requests inside the window
func (r *RateLimiter) Prune() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.window)
	for ip, reqs := range r.requests {
		if len(reqs) == 0 || !reqs[len(reqs)-1].After(cutoff) {
			delete(r.requests, ip)
		}
	}
}
