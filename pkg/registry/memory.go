package registry

import (
	"sync"

	"go-micro.dev/v5/registry"
)

// memoryRegistry 进程内注册中心
// 单节点部署与测试时使用，不依赖任何外部存储
type memoryRegistry struct {
	mu       sync.RWMutex
	services map[string]*registry.Service
}

// NewMemoryRegistry 创建进程内注册中心
func NewMemoryRegistry() registry.Registry {
	return &memoryRegistry{
		services: make(map[string]*registry.Service),
	}
}

func (r *memoryRegistry) Init(opts ...registry.Option) error {
	return nil
}

func (r *memoryRegistry) Options() registry.Options {
	return registry.Options{}
}

func (r *memoryRegistry) Register(s *registry.Service, opts ...registry.RegisterOption) error {
	if s == nil {
		return nil
	}
	r.mu.Lock()
	r.services[s.Name] = s
	r.mu.Unlock()
	return nil
}

func (r *memoryRegistry) Deregister(s *registry.Service, opts ...registry.DeregisterOption) error {
	if s == nil {
		return nil
	}
	r.mu.Lock()
	delete(r.services, s.Name)
	r.mu.Unlock()
	return nil
}

func (r *memoryRegistry) GetService(name string, opts ...registry.GetOption) ([]*registry.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.services[name]; ok {
		return []*registry.Service{s}, nil
	}
	return nil, registry.ErrNotFound
}

func (r *memoryRegistry) ListServices(opts ...registry.ListOption) ([]*registry.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	services := make([]*registry.Service, 0, len(r.services))
	for _, s := range r.services {
		services = append(services, s)
	}
	return services, nil
}

func (r *memoryRegistry) Watch(opts ...registry.WatchOption) (registry.Watcher, error) {
	return &noopWatcher{exit: make(chan struct{})}, nil
}

func (r *memoryRegistry) String() string {
	return "memory"
}

// noopWatcher 空监听器，Stop 前一直阻塞
type noopWatcher struct {
	exit chan struct{}
	once sync.Once
}

func (w *noopWatcher) Next() (*registry.Result, error) {
	<-w.exit
	return nil, registry.ErrWatcherStopped
}

func (w *noopWatcher) Stop() {
	w.once.Do(func() { close(w.exit) })
}
