package infra

import (
	"sync"
	"time"

	"task-service/middleware/ratelimit/domain"
)

// SystemClock usa time.Now (mantém a leitura monotônica).
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock é um relógio controlado manualmente, para testes determinísticos.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance avança o relógio. Valores negativos são ignorados (o relógio não retrocede).
func (c *ManualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set move o relógio para t, se t não estiver no passado.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	if t.After(c.now) {
		c.now = t
	}
	c.mu.Unlock()
}

var (
	_ domain.Clock = SystemClock{}
	_ domain.Clock = (*ManualClock)(nil)
)
