package cache

import (
	"context"
	"sync"
	"time"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
)

// TerminalCache holds short-lived per-terminal state shared between the
// payment screens and the POS page: the selected customer and a one-shot
// flash message.
type TerminalCache interface {
	SetFlash(ctx context.Context, terminalID string, message string, ttl time.Duration) error
	TakeFlash(ctx context.Context, terminalID string) (string, bool, error)
	SetCustomer(ctx context.Context, terminalID string, customer domain.Customer, ttl time.Duration) error
	GetCustomer(ctx context.Context, terminalID string) (*domain.Customer, bool, error)
	ClearCustomer(ctx context.Context, terminalID string) error
}

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e entry[T]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type MemoryTerminalCache struct {
	mu        sync.Mutex
	flashes   map[string]entry[string]
	customers map[string]entry[domain.Customer]
	now       func() time.Time
}

func NewMemoryTerminalCache() *MemoryTerminalCache {
	return &MemoryTerminalCache{
		flashes:   make(map[string]entry[string]),
		customers: make(map[string]entry[domain.Customer]),
		now:       time.Now,
	}
}

func (c *MemoryTerminalCache) SetFlash(_ context.Context, terminalID string, message string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flashes[terminalID] = entry[string]{value: message, expiresAt: c.deadline(ttl)}
	return nil
}

func (c *MemoryTerminalCache) TakeFlash(_ context.Context, terminalID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.flashes[terminalID]
	if !ok {
		return "", false, nil
	}
	delete(c.flashes, terminalID)
	if e.expired(c.now()) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *MemoryTerminalCache) SetCustomer(_ context.Context, terminalID string, customer domain.Customer, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customers[terminalID] = entry[domain.Customer]{value: customer, expiresAt: c.deadline(ttl)}
	return nil
}

func (c *MemoryTerminalCache) GetCustomer(_ context.Context, terminalID string) (*domain.Customer, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.customers[terminalID]
	if !ok {
		return nil, false, nil
	}
	if e.expired(c.now()) {
		delete(c.customers, terminalID)
		return nil, false, nil
	}
	customer := e.value
	return &customer, true, nil
}

func (c *MemoryTerminalCache) ClearCustomer(_ context.Context, terminalID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.customers, terminalID)
	return nil
}

func (c *MemoryTerminalCache) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}
