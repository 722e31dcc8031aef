package consul

import (
	"context"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
)

// ServiceConfig contains configuration for service registration
type ServiceConfig struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
	Check   *HealthCheck
}

// HealthCheck defines health check configuration
type HealthCheck struct {
	HTTP                           string
	Interval                       string
	Timeout                        string
	DeregisterCriticalServiceAfter string
}

// APIService describes one API instance. The ID is stable per host and port so that a
// restart replaces the previous registration instead of duplicating it.
func APIService(host string, port int) *ServiceConfig {
	return &ServiceConfig{
		ID:      fmt.Sprintf("%s-%s-%d", ServiceName, host, port),
		Name:    ServiceName,
		Address: host,
		Port:    port,
		Tags:    []string{"api", "http"},
		Check: &HealthCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", host, port),
			Interval:                       "10s",
			Timeout:                        "3s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}

// Register registers a service with the local agent.
func (c *Client) Register(ctx context.Context, cfg *ServiceConfig) error {
	registration := &consulapi.AgentServiceRegistration{
		ID:      cfg.ID,
		Name:    cfg.Name,
		Address: cfg.Address,
		Port:    cfg.Port,
		Tags:    cfg.Tags,
	}

	if cfg.Check != nil {
		registration.Check = &consulapi.AgentServiceCheck{
			HTTP:                           cfg.Check.HTTP,
			Interval:                       cfg.Check.Interval,
			Timeout:                        cfg.Check.Timeout,
			DeregisterCriticalServiceAfter: cfg.Check.DeregisterCriticalServiceAfter,
		}
	}

	opts := consulapi.ServiceRegisterOpts{}.WithContext(ctx)
	if err := c.api.Agent().ServiceRegisterOpts(registration, opts); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	return nil
}

// Deregister removes a service from the local agent.
func (c *Client) Deregister(ctx context.Context, serviceID string) error {
	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	if err := c.api.Agent().ServiceDeregisterOpts(serviceID, q); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}
