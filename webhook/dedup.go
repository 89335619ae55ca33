package webhook

import (
	"sync"
	"time"

	"github.com/go-redis/redis/v7"
	extErrors "github.com/pkg/errors"
)

// eventKeyTTL bounds how long delivered event ids are remembered. The
// gateway retries deliveries for well under a day.
const eventKeyTTL = 24 * time.Hour

// Deduper decides whether an event id is seen for the first time. Marking
// happens in the same call so two concurrent deliveries cannot both win.
// Release gives a claim back when the event could not be applied, so the
// gateway's redelivery counts as a first delivery again.
type Deduper interface {
	FirstDelivery(eventID string) (bool, error)
	Release(eventID string) error
}

// RedisDeduper claims event ids with SETNX so deduplication holds across
// multiple API replicas
type RedisDeduper struct {
	client redis.UniversalClient
}

var _ Deduper = &RedisDeduper{}

func NewRedisDeduper(client redis.UniversalClient) (*RedisDeduper, error) {
	if client == nil {
		return nil, extErrors.New("nil redis client is invalid")
	}
	return &RedisDeduper{client: client}, nil
}

func (d *RedisDeduper) FirstDelivery(eventID string) (bool, error) {
	claimed, err := d.client.SetNX("stripe:event:"+eventID, 1, eventKeyTTL).Result()
	if err != nil {
		return false, extErrors.Wrap(err, "Cannot claim event id")
	}
	return claimed, nil
}

func (d *RedisDeduper) Release(eventID string) error {
	if err := d.client.Del("stripe:event:" + eventID).Err(); err != nil {
		return extErrors.Wrap(err, "Cannot release event id")
	}
	return nil
}

// MemoryDeduper is a single-process Deduper for tests and local development
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

var _ Deduper = &MemoryDeduper{}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

func (d *MemoryDeduper) FirstDelivery(eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[eventID]; ok {
		return false, nil
	}
	d.seen[eventID] = struct{}{}
	return true, nil
}

func (d *MemoryDeduper) Release(eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	return nil
}
