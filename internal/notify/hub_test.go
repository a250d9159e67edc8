package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitSignal(t *testing.T, ch <-chan struct{}) bool {
	t.Helper()
	select {
	case <-ch:
		return true
	case <-time.After(2 * time.Second):
		return false
	}
}

func TestChannelHubFanOut(t *testing.T) {
	hub := NewChannelHub()
	defer hub.Close()

	topic := Topic("account:1@h", "home_1@h")
	a, cancelA := hub.Subscribe(topic)
	defer cancelA()
	b, cancelB := hub.Subscribe(topic)
	defer cancelB()
	other, cancelOther := hub.Subscribe(Topic("account:1@h", "notifications_1@h"))
	defer cancelOther()

	hub.Publish(context.Background(), topic)

	assert.True(t, waitSignal(t, a))
	assert.True(t, waitSignal(t, b))
	select {
	case <-other:
		t.Fatal("unrelated topic received a signal")
	default:
	}
}

func TestChannelHubCoalescesPendingSignals(t *testing.T) {
	hub := NewChannelHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe("t")
	defer cancel()

	// 订阅者不消费时多次发布不能阻塞
	for i := 0; i < 10; i++ {
		hub.Publish(context.Background(), "t")
	}
	assert.True(t, waitSignal(t, ch))
	select {
	case <-ch:
		// 最多残留一个 pending 信号
	default:
	}
	select {
	case <-ch:
		t.Fatal("more than one pending signal buffered")
	default:
	}
}

func TestChannelHubCancelStopsDelivery(t *testing.T) {
	hub := NewChannelHub()
	defer hub.Close()

	ch, cancel := hub.Subscribe("t")
	cancel()
	hub.Publish(context.Background(), "t")
	select {
	case <-ch:
		t.Fatal("cancelled subscriber received a signal")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRedisHubDelivers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	hub := NewRedisHub(client)
	defer hub.Close()

	topic := Topic("account:1@h", "home_1@h")
	ch, cancel := hub.Subscribe(topic)
	defer cancel()

	// pub/sub 注册是异步的，留一点时间
	require.Eventually(t, func() bool {
		hub.Publish(context.Background(), topic)
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}, 3*time.Second, 20*time.Millisecond)
}
