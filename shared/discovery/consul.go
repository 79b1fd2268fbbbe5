package discovery

import (
	"fmt"
	"net"
	"strconv"

	"github.com/hashicorp/consul/api"
	"github.com/rs/zerolog"
)

// Registration describes a service instance announced to Consul.
type Registration struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
}

// Registrar registers and deregisters service instances with a Consul agent.
type Registrar struct {
	agent  agent
	logger *zerolog.Logger
}

type agent interface {
	ServiceRegister(service *api.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
}

// NewConsulRegistrar creates a Registrar talking to the agent at addr.
func NewConsulRegistrar(addr string, logger *zerolog.Logger) (*Registrar, error) {
	cfg := api.DefaultConfig()
	cfg.Address = addr

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &Registrar{agent: client.Agent(), logger: logger}, nil
}

// Register announces reg with a gRPC health check against its address.
func (r *Registrar) Register(reg Registration) error {
	target := net.JoinHostPort(reg.Address, strconv.Itoa(reg.Port))

	err := r.agent.ServiceRegister(&api.AgentServiceRegistration{
		ID:      reg.ID,
		Name:    reg.Name,
		Address: reg.Address,
		Port:    reg.Port,
		Tags:    reg.Tags,
		Check: &api.AgentServiceCheck{
			GRPC:                           target,
			Interval:                       "10s",
			Timeout:                        "3s",
			DeregisterCriticalServiceAfter: "1m",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to register service %s: %w", reg.ID, err)
	}

	r.logger.Info().Str("service_id", reg.ID).Str("target", target).Msg("registered with consul")
	return nil
}

// Deregister removes the service instance.
func (r *Registrar) Deregister(id string) {
	if err := r.agent.ServiceDeregister(id); err != nil {
		r.logger.Error().Err(err).Str("service_id", id).Msg("failed to deregister from consul")
	}
}
