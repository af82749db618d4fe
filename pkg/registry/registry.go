package registry

import (
	"go-micro.dev/v5/registry"
)

// BuildService 构建本节点的注册信息
// Address 为节点的 HTTP 监听地址，集群内失效广播通过它直连
func BuildService(name, version, nodeID, address string) *registry.Service {
	return &registry.Service{
		Name:    name,
		Version: version,
		Nodes: []*registry.Node{
			{
				Id:      nodeID,
				Address: address,
			},
		},
	}
}

// NodeAddresses 提取服务下所有节点地址，排除指定节点
func NodeAddresses(services []*registry.Service, excludeNodeID string) []string {
	var addrs []string
	for _, svc := range services {
		for _, node := range svc.Nodes {
			if node.Id == excludeNodeID {
				continue
			}
			addrs = append(addrs, node.Address)
		}
	}
	return addrs
}
