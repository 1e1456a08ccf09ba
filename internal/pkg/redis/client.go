package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultTypingTTL is how long a typing marker survives without refresh.
// Typing state is ephemeral by design: lost on disconnect, no delivery guarantee.
const DefaultTypingTTL = 6 * time.Second

type Client interface {
	Close() error
	GetClient() *redis.Client
	Ping(ctx context.Context) error

	// Per-conversation monotone sequence numbers for message ordering.
	GenerateSeqID(ctx context.Context, conversationID uint) (int64, error)

	// Online presence.
	SetUserOnline(ctx context.Context, userID uint, ttl time.Duration) error
	IsUserOnline(ctx context.Context, userID uint) (bool, error)
	RemoveUserOnline(ctx context.Context, userID uint) error

	// Typing presence, keyed by (conversation, user).
	SetTyping(ctx context.Context, conversationID, userID uint, ttl time.Duration) error
	ClearTyping(ctx context.Context, conversationID, userID uint) error
	TypingPeers(ctx context.Context, conversationID uint) ([]uint, error)

	// Pub/sub bridge between gateway nodes.
	Publish(ctx context.Context, channel string, message any) error
	Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error)

	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (int64, error)
}

type redisClient struct {
	client *redis.Client
}

// NewClient wraps an established go-redis client.
func NewClient(rdb *redis.Client) Client {
	return &redisClient{client: rdb}
}

func (c *redisClient) Close() error {
	return c.client.Close()
}

func (c *redisClient) GetClient() *redis.Client {
	return c.client
}

func (c *redisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisClient) GenerateSeqID(ctx context.Context, conversationID uint) (int64, error) {
	key := fmt.Sprintf("conversation:%d:seq_id", conversationID)
	result, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to generate seq id for conversation %d: %w", conversationID, err)
	}
	return result, nil
}

func (c *redisClient) SetUserOnline(ctx context.Context, userID uint, ttl time.Duration) error {
	key := fmt.Sprintf("user:%d:online", userID)
	if err := c.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to set user %d online: %w", userID, err)
	}
	return nil
}

func (c *redisClient) IsUserOnline(ctx context.Context, userID uint) (bool, error) {
	key := fmt.Sprintf("user:%d:online", userID)
	result, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if user %d is online: %w", userID, err)
	}
	return result > 0, nil
}

func (c *redisClient) RemoveUserOnline(ctx context.Context, userID uint) error {
	key := fmt.Sprintf("user:%d:online", userID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to remove user %d online status: %w", userID, err)
	}
	return nil
}

func (c *redisClient) SetTyping(ctx context.Context, conversationID, userID uint, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	key := fmt.Sprintf("conversation:%d:typing:%d", conversationID, userID)
	if err := c.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to set typing for user %d in conversation %d: %w", userID, conversationID, err)
	}
	return nil
}

func (c *redisClient) ClearTyping(ctx context.Context, conversationID, userID uint) error {
	key := fmt.Sprintf("conversation:%d:typing:%d", conversationID, userID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear typing for user %d in conversation %d: %w", userID, conversationID, err)
	}
	return nil
}

func (c *redisClient) TypingPeers(ctx context.Context, conversationID uint) ([]uint, error) {
	pattern := fmt.Sprintf("conversation:%d:typing:*", conversationID)
	prefix := fmt.Sprintf("conversation:%d:typing:", conversationID)

	var peers []uint
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		raw := iter.Val()[len(prefix):]
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			continue
		}
		peers = append(peers, uint(id))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan typing peers for conversation %d: %w", conversationID, err)
	}
	return peers, nil
}

func (c *redisClient) Publish(ctx context.Context, channel string, message any) error {
	if err := c.client.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

func (c *redisClient) Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	pubsub := c.client.Subscribe(ctx, channels...)
	// Wait for confirmation that subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to channels: %w", err)
	}
	return pubsub, nil
}

func (c *redisClient) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *redisClient) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c *redisClient) Del(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisClient) Exists(ctx context.Context, keys ...string) (int64, error) {
	return c.client.Exists(ctx, keys...).Result()
}
