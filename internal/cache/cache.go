// Package cache stores computed results of complete rounds. A round's
// results never change once it is complete, so entries only expire by TTL.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis"

	"songrate/pkg/models"
)

const logtag = "[cache]"

// Redis keeps results as JSON under "<prefix>:results:<round id>".
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// MustConnect dials addr and fails hard when redis does not answer.
func MustConnect(addr, password string, db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping().Err(); err != nil {
		log.Fatalf("%s redis ping failed: %v", logtag, err)
	}
	return client
}

func (c *Redis) key(roundID string) string {
	if c.prefix != "" {
		return c.prefix + ":results:" + roundID
	}
	return "results:" + roundID
}

func (c *Redis) GetResults(ctx context.Context, roundID string) (*models.Results, bool, error) {
	b, err := c.client.WithContext(ctx).Get(c.key(roundID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get results: %w", err)
	}
	var res models.Results
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, false, fmt.Errorf("decode results: %w", err)
	}
	return &res, true, nil
}

func (c *Redis) SetResults(ctx context.Context, res *models.Results) error {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := c.client.WithContext(ctx).Set(c.key(res.RoundID), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("set results: %w", err)
	}
	return nil
}

// Memory is the in-process fallback used when redis is not configured.
type Memory struct {
	mu    sync.RWMutex
	items map[string]*models.Results
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]*models.Results)}
}

func (m *Memory) GetResults(_ context.Context, roundID string) (*models.Results, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.items[roundID]
	return res, ok, nil
}

func (m *Memory) SetResults(_ context.Context, res *models.Results) error {
	m.mu.Lock()
	m.items[res.RoundID] = res
	m.mu.Unlock()
	return nil
}
