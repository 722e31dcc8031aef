// Package consul registers the API with a Consul agent and lets the CLI locate a healthy
// API instance instead of a hard-coded base URL.
package consul

import (
	consulapi "github.com/hashicorp/consul/api"
)

// ServiceName is the name the API registers under.
const ServiceName = "mindsage-api"

// Client wraps the Consul API client
type Client struct {
	api *consulapi.Client
}

// NewClient creates a Consul client. token is the optional ACL token.
func NewClient(addr, token string) (*Client, error) {
	config := consulapi.DefaultConfig()
	if addr != "" {
		config.Address = addr
	}
	if token != "" {
		config.Token = token
	}

	client, err := consulapi.NewClient(config)
	if err != nil {
		return nil, err
	}
	return &Client{api: client}, nil
}
