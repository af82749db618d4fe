package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go-micro.dev/v5/registry"
	"go.uber.org/zap"

	"github.com/myltx/nestbase-go/pkg/logger"
	pkgregistry "github.com/myltx/nestbase-go/pkg/registry"
)

// Message 集群广播消息
type Message struct {
	Topic   string    `json:"topic"`
	NodeID  string    `json:"nodeId"`
	Payload []byte    `json:"payload"`
	SentAt  time.Time `json:"sentAt"`
}

// Handler 消息处理器
type Handler func(msg *Message)

// Broadcaster 集群广播器
// 通过注册中心发现同服务的对端节点，消息经 HTTP 直连异步投递；
// 订阅者只会收到对端节点的消息
type Broadcaster struct {
	service  string
	nodeID   string
	registry registry.Registry
	client   *http.Client

	mu          sync.RWMutex
	subscribers map[string][]Handler
}

// New 创建广播器
func New(service, nodeID string, reg registry.Registry) *Broadcaster {
	return &Broadcaster{
		service:  service,
		nodeID:   nodeID,
		registry: reg,
		client: &http.Client{
			Timeout: 3 * time.Second,
		},
		subscribers: make(map[string][]Handler),
	}
}

// Subscribe 订阅主题
func (b *Broadcaster) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], handler)
}

// Publish 向集群内所有对端节点广播消息
// 本节点不派发：发送方自己的处理已在调用前完成
func (b *Broadcaster) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := &Message{
		Topic:   topic,
		NodeID:  b.nodeID,
		Payload: payload,
		SentAt:  time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("消息序列化失败: %w", err)
	}

	for _, addr := range b.peers() {
		go b.deliver(addr, data)
	}
	return nil
}

// PublishJSON 广播 JSON 负载
func (b *Broadcaster) PublishJSON(ctx context.Context, topic string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("负载序列化失败: %w", err)
	}
	return b.Publish(ctx, topic, payload)
}

// peers 查询同服务的对端节点地址
func (b *Broadcaster) peers() []string {
	services, err := b.registry.GetService(b.service)
	if err != nil {
		return nil
	}
	return pkgregistry.NodeAddresses(services, b.nodeID)
}

// deliver 投递消息到单个对端节点
// 投递失败只记日志：对端的缓存条目最终会按 TTL 过期
func (b *Broadcaster) deliver(addr string, data []byte) {
	url := fmt.Sprintf("http://%s/_cluster/broadcast", addr)
	resp, err := b.client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		logger.Debug("广播投递失败", zap.String("addr", addr), zap.Error(err))
		return
	}
	resp.Body.Close()
}

// FiberHandler 接收对端广播的路由处理器，挂载在 POST /_cluster/broadcast
func (b *Broadcaster) FiberHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var msg Message
		if err := json.Unmarshal(c.Body(), &msg); err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}

		// 回环保护：自己发出的消息已在本地派发过
		if msg.NodeID == b.nodeID {
			return c.SendStatus(fiber.StatusOK)
		}

		b.dispatch(&msg)
		return c.SendStatus(fiber.StatusOK)
	}
}

// dispatch 将消息派发给本地订阅者
func (b *Broadcaster) dispatch(msg *Message) {
	b.mu.RLock()
	handlers := b.subscribers[msg.Topic]
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(msg)
	}
}
