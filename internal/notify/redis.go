package notify

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/flare-sync/pkg/logger"
)

const channelPrefix = "flare:paging:"

// redisHub 跨进程实现：同一缓存库被多个进程（daemon + CLI）打开时，
// 写入方 PUBLISH，订阅方经 redis pub/sub 收敛为本地信号。
type redisHub struct {
	client *redis.Client
	local  Hub

	mu     sync.Mutex
	pubsub *redis.PubSub
	topics map[string]int
	cancel context.CancelFunc
}

// NewRedisHub wraps a channel hub with redis fan-in/fan-out.
func NewRedisHub(client *redis.Client) Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &redisHub{
		client: client,
		local:  NewChannelHub(),
		topics: make(map[string]int),
		cancel: cancel,
	}
	h.pubsub = client.Subscribe(ctx)
	go h.loop(ctx)
	return h
}

func (h *redisHub) loop(ctx context.Context) {
	ch := h.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			topic := msg.Channel[len(channelPrefix):]
			h.local.Publish(ctx, topic)
		}
	}
}

func (h *redisHub) Publish(ctx context.Context, topic string) {
	if err := h.client.Publish(ctx, channelPrefix+topic, "1").Err(); err != nil {
		logger.Warn("redis publish failed, falling back to local", zap.String("topic", topic), zap.Error(err))
		h.local.Publish(ctx, topic)
	}
}

func (h *redisHub) Subscribe(topic string) (<-chan struct{}, func()) {
	h.mu.Lock()
	h.topics[topic]++
	if h.topics[topic] == 1 {
		_ = h.pubsub.Subscribe(context.Background(), channelPrefix+topic)
	}
	h.mu.Unlock()

	ch, cancelLocal := h.local.Subscribe(topic)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelLocal()
			h.mu.Lock()
			h.topics[topic]--
			if h.topics[topic] <= 0 {
				delete(h.topics, topic)
				_ = h.pubsub.Unsubscribe(context.Background(), channelPrefix+topic)
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

func (h *redisHub) Close() error {
	h.cancel()
	_ = h.pubsub.Close()
	return h.local.Close()
}
