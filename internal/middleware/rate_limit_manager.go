package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter groups with their own per-IP budgets.
const (
	LimiterGeneral = "general"
	LimiterOrders  = "orders"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterGroup struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	idle     time.Duration
}

// RateLimitManager owns the per-IP limiters and evicts idle ones in the background.
type RateLimitManager struct {
	groups map[string]*limiterGroup
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRateLimitManager(ctx context.Context) *RateLimitManager {
	managerCtx, cancel := context.WithCancel(ctx)

	m := &RateLimitManager{
		groups: map[string]*limiterGroup{
			LimiterGeneral: {visitors: make(map[string]*visitor), idle: 3 * time.Minute},
			LimiterOrders:  {visitors: make(map[string]*visitor), idle: 10 * time.Minute},
		},
		ctx:    managerCtx,
		cancel: cancel,
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

// GetLimiter returns the limiter for ip within group, creating it on first use. A nil
// limiter means the group is unlimited.
func (m *RateLimitManager) GetLimiter(group, ip string, requestsPerWindow, windowSeconds, burst int) *rate.Limiter {
	if m == nil || requestsPerWindow <= 0 {
		return nil
	}
	g, ok := m.groups[group]
	if !ok {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	v, exists := g.visitors[ip]
	if exists {
		v.lastSeen = time.Now()
		return v.limiter
	}

	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	limit := rate.Limit(float64(requestsPerWindow) / float64(windowSeconds))
	if burst < requestsPerWindow {
		burst = requestsPerWindow
	}

	limiter := rate.NewLimiter(limit, burst)
	g.visitors[ip] = &visitor{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

func (m *RateLimitManager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *RateLimitManager) cleanup() {
	for _, g := range m.groups {
		g.mu.Lock()
		for ip, v := range g.visitors {
			if time.Since(v.lastSeen) > g.idle {
				delete(g.visitors, ip)
			}
		}
		g.mu.Unlock()
	}
}

// Shutdown stops the cleanup goroutine and waits for it to finish.
func (m *RateLimitManager) Shutdown() error {
	m.cancel()
	m.wg.Wait()
	return nil
}
