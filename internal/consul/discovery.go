package consul

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"
)

// ErrNoInstances is returned when Consul knows no passing instance of a service.
var ErrNoInstances = errors.New("no healthy instances")

// ServiceInstance represents a discovered service instance
type ServiceInstance struct {
	ID      string
	Address string
	Port    int
	Tags    []string
}

// BaseURL is the http URL of the instance.
func (s *ServiceInstance) BaseURL() string {
	return "http://" + net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// Discover retrieves all instances of serviceName whose checks are passing.
func (c *Client) Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	entries, _, err := c.api.Health().Service(serviceName, "", true, q)
	if err != nil {
		return nil, fmt.Errorf("failed to discover service %s: %w", serviceName, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoInstances, serviceName)
	}

	instances := make([]*ServiceInstance, 0, len(entries))
	for _, entry := range entries {
		instance := &ServiceInstance{
			ID:      entry.Service.ID,
			Address: entry.Service.Address,
			Port:    entry.Service.Port,
			Tags:    entry.Service.Tags,
		}
		// Use node address if service address is empty
		if instance.Address == "" && entry.Node != nil {
			instance.Address = entry.Node.Address
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// DiscoverOne picks one healthy instance at random.
func (c *Client) DiscoverOne(ctx context.Context, serviceName string) (*ServiceInstance, error) {
	instances, err := c.Discover(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	return instances[rand.IntN(len(instances))], nil
}
