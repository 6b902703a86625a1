package contracts

import (
	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// ServiceRegistry wraps the deployed ServiceRegistry contract:
// read-only for this spec (service discovery, spec §6.1), used to
// resolve a pathfinding or monitoring service's registered URL.
type ServiceRegistry struct {
	contract *bind.BoundContract
}

// HasValidRegistration reports whether service is currently a paid-up
// registered service provider.
func (s *ServiceRegistry) HasValidRegistration(opts *bind.CallOpts, service primitives.Address) (bool, error) {
	var out []interface{}
	if err := s.contract.Call(opts, &out, "hasValidRegistration", service); err != nil {
		return false, err
	}
	if len(out) == 0 {
		return false, nil
	}
	b, _ := out[0].(bool)
	return b, nil
}

// URL reads service's registered endpoint.
func (s *ServiceRegistry) URL(opts *bind.CallOpts, service primitives.Address) (string, error) {
	var out []interface{}
	if err := s.contract.Call(opts, &out, "urls", service); err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", nil
	}
	u, _ := out[0].(string)
	return u, nil
}
