package sources

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cuemby/lookout/pkg/event"
	"github.com/cuemby/lookout/pkg/source"
	"github.com/cuemby/lookout/pkg/types"
	"github.com/redis/go-redis/v9"
)

// KindRedis reads a key or an INFO field from Redis
const KindRedis = "redis"

// RedisProducer publishes a Redis value.
//
// Properties: url (redis://host:port/db, required), key, or section and
// field for an INFO lookup, title.
type RedisProducer struct {
	client  *redis.Client
	key     string
	section string
	field   string
	title   string
}

// NewRedisProducer is the Factory of KindRedis
func NewRedisProducer(src *types.SourceInstance) (source.Producer, error) {
	opts, err := redis.ParseURL(src.Property("url", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	p := &RedisProducer{
		key:     src.Property("key", ""),
		section: src.Property("section", ""),
		field:   src.Property("field", ""),
		title:   src.Property("title", src.Name),
	}
	if p.key == "" && p.field == "" {
		return nil, errors.New("property key or field is required")
	}

	p.client = redis.NewClient(opts)
	return p, nil
}

// Produce implements source.Producer
func (p *RedisProducer) Produce(ctx context.Context) (event.Event, error) {
	var payload map[string]any
	if p.key != "" {
		v, err := p.client.Get(ctx, p.key).Result()
		if errors.Is(err, redis.Nil) {
			return event.Event{}, source.Failf("key %s does not exist", p.key)
		}
		if err != nil {
			return event.Event{}, source.Fail("redis GET failed", err)
		}
		payload = map[string]any{"value": v}
	} else {
		info, err := p.client.Info(ctx, p.section).Result()
		if err != nil {
			return event.Event{}, source.Fail("redis INFO failed", err)
		}
		v, ok := infoField(info, p.field)
		if !ok {
			return event.Event{}, source.Failf("INFO field %s not found", p.field)
		}
		payload = map[string]any{"value": v}
	}

	ev := event.NewData(payload)
	ev.Title = p.title
	return ev, nil
}

// Close closes the client
func (p *RedisProducer) Close() error {
	return p.client.Close()
}

// infoField extracts field from the "name:value" lines of an INFO reply
func infoField(info, field string) (string, bool) {
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if ok && name == field {
			return value, true
		}
	}
	return "", false
}
