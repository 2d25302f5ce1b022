package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/wabisabiit/Wabi-Sabi-ERP-Project-sub000/internal/domain"
)

type RedisTerminalCache struct {
	client *redis.Client
	prefix string
}

func NewRedisTerminalCache(addr string, password string, db int) *RedisTerminalCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisTerminalCache{client: client, prefix: "pos:terminal:"}
}

func (c *RedisTerminalCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisTerminalCache) Close() error {
	return c.client.Close()
}

func (c *RedisTerminalCache) flashKey(terminalID string) string {
	return c.prefix + terminalID + ":flash"
}

func (c *RedisTerminalCache) customerKey(terminalID string) string {
	return c.prefix + terminalID + ":customer"
}

func (c *RedisTerminalCache) SetFlash(ctx context.Context, terminalID string, message string, ttl time.Duration) error {
	return c.client.Set(ctx, c.flashKey(terminalID), message, ttl).Err()
}

// TakeFlash reads and deletes in one round trip so two readers never both see the message.
func (c *RedisTerminalCache) TakeFlash(ctx context.Context, terminalID string) (string, bool, error) {
	val, err := c.client.GetDel(ctx, c.flashKey(terminalID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisTerminalCache) SetCustomer(ctx context.Context, terminalID string, customer domain.Customer, ttl time.Duration) error {
	payload, err := json.Marshal(customer)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.customerKey(terminalID), payload, ttl).Err()
}

func (c *RedisTerminalCache) GetCustomer(ctx context.Context, terminalID string) (*domain.Customer, bool, error) {
	val, err := c.client.Get(ctx, c.customerKey(terminalID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var customer domain.Customer
	if err := json.Unmarshal([]byte(val), &customer); err != nil {
		return nil, false, err
	}
	return &customer, true, nil
}

func (c *RedisTerminalCache) ClearCustomer(ctx context.Context, terminalID string) error {
	return c.client.Del(ctx, c.customerKey(terminalID)).Err()
}
