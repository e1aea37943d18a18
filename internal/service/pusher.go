package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/clinilab/labtrail/internal/pkg/logger"
	"github.com/clinilab/labtrail/internal/pkg/metrics"
	"github.com/clinilab/labtrail/internal/realtime"
)

const pushAPIKeyHeader = "X-API-Key"

type pushEvent struct {
	NotificationID int64
	UserID         int64
}

// RealtimePusher 是尽力而为的实时推送通道: 新通知入队后由独立的消费者
// goroutine 通知外部投递服务, 并向本进程内的 websocket 连接广播。
// 队列有界, 满了就丢弃并计数; 丢一条推送可以接受, 通知行本身仍可轮询到。
type RealtimePusher struct {
	mu      sync.RWMutex
	closed  bool
	events  chan pushEvent
	client  *http.Client
	baseURL string
	apiKey  string
	hub     *realtime.Hub
	done    chan struct{}
}

func NewRealtimePusher(baseURL, apiKey string, queueSize int, timeout time.Duration, hub *realtime.Hub) *RealtimePusher {
	if queueSize <= 0 {
		queueSize = 1000
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	p := &RealtimePusher{
		events:  make(chan pushEvent, queueSize),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		hub:     hub,
		done:    make(chan struct{}),
	}

	// 启动消费者 goroutine
	go p.process()

	return p
}

// Enqueue 绝不阻塞请求路径; 队列满或已关闭时丢弃本次推送并打印警告。
// 优雅停机期间在途请求仍可能走到这里, 关闭后的入队是计数的丢弃而不是 panic。
func (p *RealtimePusher) Enqueue(notificationID, userID int64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		metrics.PushDropped.Inc()
		logger.Warn("push queue closed, dropping realtime notification",
			"notification_id", notificationID, "user_id", userID)
		return
	}

	select {
	case p.events <- pushEvent{NotificationID: notificationID, UserID: userID}:
		metrics.PushQueueDepth.Inc()
	default:
		metrics.PushDropped.Inc()
		logger.Warn("push queue full, dropping realtime notification",
			"notification_id", notificationID, "user_id", userID)
	}
}

func (p *RealtimePusher) process() {
	defer close(p.done)
	for ev := range p.events {
		metrics.PushQueueDepth.Dec()

		if p.hub != nil {
			p.hub.Broadcast(ev.UserID, ev.NotificationID)
		}

		if p.baseURL == "" {
			continue
		}
		if err := p.trigger(ev); err != nil {
			metrics.PushAttempts.WithLabelValues("error").Inc()
			logger.Error("failed to deliver realtime push",
				"notification_id", ev.NotificationID, "user_id", ev.UserID, "error", err.Error())
			continue
		}
		metrics.PushAttempts.WithLabelValues("ok").Inc()
	}
}

func (p *RealtimePusher) trigger(ev pushEvent) error {
	url := fmt.Sprintf("%s/api/internal/notifications/%d/trigger", p.baseURL, ev.NotificationID)

	// 有意不挂在请求的 context 上: 响应返回后推送仍要继续
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	if p.apiKey != "" {
		req.Header.Set(pushAPIKeyHeader, p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Close 停止接收新事件并等待队列排空, 可安全调用多次。
func (p *RealtimePusher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	<-p.done
}
