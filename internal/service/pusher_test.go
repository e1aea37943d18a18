package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPusherDeliversTrigger(t *testing.T) {
	type received struct {
		path   string
		method string
		apiKey string
	}
	got := make(chan received, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- received{path: r.URL.Path, method: r.Method, apiKey: r.Header.Get("X-API-Key")}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewRealtimePusher(srv.URL, "secret-key", 10, 2*time.Second, nil)
	p.Enqueue(77, 42)
	p.Close()

	select {
	case r := <-got:
		assert.Equal(t, http.MethodPost, r.method)
		assert.Equal(t, "/api/internal/notifications/77/trigger", r.path)
		assert.Equal(t, "secret-key", r.apiKey)
	case <-time.After(3 * time.Second):
		t.Fatal("push never delivered")
	}
}

func TestPusherSwallowsDeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewRealtimePusher(srv.URL, "", 10, time.Second, nil)
	p.Enqueue(1, 1)
	p.Enqueue(2, 2)
	// Close 等待队列排空; 投递失败不阻塞也不传播
	p.Close()
}

func TestPusherWithoutEndpointDrainsQueue(t *testing.T) {
	p := NewRealtimePusher("", "", 4, time.Second, nil)
	for i := int64(0); i < 4; i++ {
		p.Enqueue(i, i)
	}
	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pusher did not drain")
	}
}

func TestPusherEnqueueAfterCloseIsDropped(t *testing.T) {
	p := NewRealtimePusher("", "", 4, time.Second, nil)
	p.Close()

	// 停机后到达的事件按丢弃处理, 不 panic
	require.NotPanics(t, func() { p.Enqueue(1, 2) })
	require.NotPanics(t, p.Close)
}

func TestPusherEnqueueNeverBlocks(t *testing.T) {
	// 慢速下游 + 容量 1 的队列: 多余事件被丢弃而不是阻塞请求路径
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewRealtimePusher(srv.URL, "", 1, 5*time.Second, nil)

	start := time.Now()
	for i := int64(0); i < 50; i++ {
		p.Enqueue(i, i)
	}
	require.Less(t, time.Since(start), time.Second)

	close(block)
	p.Close()
}
