package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go-micro.dev/v5/registry"

	"github.com/myltx/nestbase-go/pkg/cache"
	"github.com/myltx/nestbase-go/pkg/logger"
	"go.uber.org/zap"
)

const (
	servicePrefix = "registry:service:"
	recordTTL     = 30 * time.Second
)

// nodeRecord 带租约的节点记录
type nodeRecord struct {
	Node      *registry.Node `json:"node"`
	ExpiresAt int64          `json:"expiresAt"`
}

// serviceRecord 一个服务的全部节点，整体存为单个缓存键
type serviceRecord struct {
	Name    string                `json:"name"`
	Version string                `json:"version"`
	Nodes   map[string]nodeRecord `json:"nodes"`
}

// cacheRegistry 基于共享缓存的注册中心
// 每个服务占一个键，节点通过心跳续租；并发注册采用读-改-写，
// 合并中丢失的节点会在它的下一次心跳恢复
type cacheRegistry struct {
	cache     *cache.Cache
	mu        sync.Mutex
	heartbeat map[string]*time.Ticker
	seen      map[string]struct{}
}

// NewCacheRegistry 创建基于共享缓存的注册中心
// 缓存后端为远端时注册信息对集群内所有节点可见
func NewCacheRegistry(c *cache.Cache) registry.Registry {
	return &cacheRegistry{
		cache:     c,
		heartbeat: make(map[string]*time.Ticker),
		seen:      make(map[string]struct{}),
	}
}

func (r *cacheRegistry) Init(opts ...registry.Option) error {
	return nil
}

func (r *cacheRegistry) Options() registry.Options {
	return registry.Options{}
}

func (r *cacheRegistry) Register(s *registry.Service, opts ...registry.RegisterOption) error {
	if s == nil || len(s.Nodes) == 0 {
		return fmt.Errorf("服务或节点不能为空")
	}

	if err := r.upsert(s); err != nil {
		return err
	}

	r.mu.Lock()
	r.seen[s.Name] = struct{}{}
	r.mu.Unlock()

	logger.Debug("服务已注册",
		zap.String("service", s.Name),
		zap.Int("nodes", len(s.Nodes)),
	)

	r.startHeartbeat(s)
	return nil
}

func (r *cacheRegistry) Deregister(s *registry.Service, opts ...registry.DeregisterOption) error {
	if s == nil {
		return fmt.Errorf("服务不能为空")
	}

	r.stopHeartbeat(s.Name)

	ctx := context.Background()
	record := r.load(ctx, s.Name)
	if record == nil {
		return nil
	}
	for _, node := range s.Nodes {
		delete(record.Nodes, node.Id)
	}
	if len(record.Nodes) == 0 {
		r.cache.Del(ctx, servicePrefix+s.Name)
		return nil
	}
	return r.store(ctx, record)
}

func (r *cacheRegistry) GetService(name string, opts ...registry.GetOption) ([]*registry.Service, error) {
	record := r.load(context.Background(), name)
	if record == nil {
		return nil, registry.ErrNotFound
	}

	now := time.Now().Unix()
	svc := &registry.Service{Name: record.Name, Version: record.Version}
	for _, n := range record.Nodes {
		if n.ExpiresAt <= now {
			continue
		}
		svc.Nodes = append(svc.Nodes, n.Node)
	}
	if len(svc.Nodes) == 0 {
		return nil, registry.ErrNotFound
	}
	return []*registry.Service{svc}, nil
}

// ListServices 列出本实例注册过的服务
// 共享缓存不支持键扫描，跨服务发现不在职责范围内
func (r *cacheRegistry) ListServices(opts ...registry.ListOption) ([]*registry.Service, error) {
	r.mu.Lock()
	names := make([]string, 0, len(r.seen))
	for name := range r.seen {
		names = append(names, name)
	}
	r.mu.Unlock()

	services := make([]*registry.Service, 0, len(names))
	for _, name := range names {
		found, err := r.GetService(name)
		if err != nil {
			continue
		}
		services = append(services, found...)
	}
	return services, nil
}

func (r *cacheRegistry) Watch(opts ...registry.WatchOption) (registry.Watcher, error) {
	return &noopWatcher{exit: make(chan struct{})}, nil
}

func (r *cacheRegistry) String() string {
	return "cache"
}

// upsert 合并写入本服务的节点记录
func (r *cacheRegistry) upsert(s *registry.Service) error {
	ctx := context.Background()

	record := r.load(ctx, s.Name)
	if record == nil {
		record = &serviceRecord{
			Name:    s.Name,
			Version: s.Version,
			Nodes:   make(map[string]nodeRecord),
		}
	}

	expiresAt := time.Now().Add(recordTTL).Unix()
	now := time.Now().Unix()
	for _, node := range s.Nodes {
		record.Nodes[node.Id] = nodeRecord{Node: node, ExpiresAt: expiresAt}
	}
	for id, n := range record.Nodes {
		if n.ExpiresAt <= now {
			delete(record.Nodes, id)
		}
	}

	return r.store(ctx, record)
}

func (r *cacheRegistry) load(ctx context.Context, name string) *serviceRecord {
	data := r.cache.Get(ctx, servicePrefix+name)
	if data == nil {
		return nil
	}
	var record serviceRecord
	if err := json.Unmarshal(data, &record); err != nil {
		logger.Warn("服务记录反序列化失败", zap.String("service", name), zap.Error(err))
		return nil
	}
	if record.Nodes == nil {
		record.Nodes = make(map[string]nodeRecord)
	}
	return &record
}

func (r *cacheRegistry) store(ctx context.Context, record *serviceRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("服务记录序列化失败: %w", err)
	}
	r.cache.Set(ctx, servicePrefix+record.Name, data, int(recordTTL/time.Second))
	return nil
}

// startHeartbeat 周期续租，保证节点记录在崩溃后自动过期
func (r *cacheRegistry) startHeartbeat(s *registry.Service) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ticker, ok := r.heartbeat[s.Name]; ok {
		ticker.Stop()
	}

	ticker := time.NewTicker(recordTTL / 3)
	r.heartbeat[s.Name] = ticker

	go func() {
		for range ticker.C {
			if err := r.upsert(s); err != nil {
				logger.Warn("服务心跳续租失败", zap.String("service", s.Name), zap.Error(err))
			}
		}
	}()
}

func (r *cacheRegistry) stopHeartbeat(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ticker, ok := r.heartbeat[name]; ok {
		ticker.Stop()
		delete(r.heartbeat, name)
	}
}
