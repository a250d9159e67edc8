package notify

import (
	"context"
	"sync"
)

// Topic 是 (accountType, pagingKey) 的字符串编码，所有缓存写入方
// 在提交后发布，观察同一 topic 的 pager 重新拉取快照。
func Topic(accountType, pagingKey string) string {
	return accountType + "|" + pagingKey
}

// Publisher is the write-side half used by the repositories.
type Publisher interface {
	Publish(ctx context.Context, topic string)
}

// Hub 按 topic 扇出变更信号；慢订阅者只做信号合并，绝不阻塞发布方。
type Hub interface {
	Publisher
	Subscribe(topic string) (<-chan struct{}, func())
	Close() error
}

type channelHub struct {
	mu     sync.Mutex
	subs   map[string]map[chan struct{}]struct{}
	closed bool
}

// NewChannelHub 进程内实现，单实例部署的默认选择。
func NewChannelHub() Hub {
	return &channelHub{subs: make(map[string]map[chan struct{}]struct{})}
}

func (h *channelHub) Publish(_ context.Context, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
			// 已有 pending 信号，合并
		}
	}
}

func (h *channelHub) Subscribe(topic string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	set, ok := h.subs[topic]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.subs[topic] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[topic]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, topic)
				}
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

func (h *channelHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.subs = make(map[string]map[chan struct{}]struct{})
	return nil
}
