// Package contracts wraps each on-chain contract spec §6.1 names in a
// typed proxy: TokenNetworkRegistry, TokenNetwork, SecretRegistry,
// UserDeposit, ServiceRegistry and OneToN. Every proxy is a thin
// wrapper over go-ethereum's generic bind.BoundContract, since this
// module vendors no code-generated bindings; the ABI each proxy needs
// is supplied by the caller at construction time (e.g. loaded from the
// deployed contracts' compiled artifacts).
package contracts

import (
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// ProxyManager memoizes one proxy per (contract kind, address),
// guarded by a read-write lock so concurrent lookups don't race
// construction (spec §4.8: "The ProxyManager singleton memoizes
// per-address proxies behind a read-write lock").
type ProxyManager struct {
	backend bind.ContractBackend
	abis    ContractABIs

	mu                    sync.RWMutex
	tokenNetworkRegistries map[primitives.Address]*TokenNetworkRegistry
	tokenNetworks          map[primitives.Address]*TokenNetwork
	secretRegistries       map[primitives.Address]*SecretRegistry
	userDeposits           map[primitives.Address]*UserDeposit
	serviceRegistries      map[primitives.Address]*ServiceRegistry
	oneToNs                map[primitives.Address]*OneToN
	erc20s                 map[primitives.Address]*ERC20
}

// ContractABIs bundles the parsed ABI for every contract kind a
// ProxyManager constructs proxies from.
type ContractABIs struct {
	TokenNetworkRegistry abi.ABI
	TokenNetwork          abi.ABI
	SecretRegistry        abi.ABI
	UserDeposit           abi.ABI
	ServiceRegistry       abi.ABI
	OneToN                abi.ABI
	ERC20                 abi.ABI
}

// NewProxyManager builds a ProxyManager bound to backend (typically an
// *ethclient.Client) using the given parsed ABIs.
func NewProxyManager(backend bind.ContractBackend, abis ContractABIs) *ProxyManager {
	return &ProxyManager{
		backend:                backend,
		abis:                   abis,
		tokenNetworkRegistries: make(map[primitives.Address]*TokenNetworkRegistry),
		tokenNetworks:          make(map[primitives.Address]*TokenNetwork),
		secretRegistries:       make(map[primitives.Address]*SecretRegistry),
		userDeposits:           make(map[primitives.Address]*UserDeposit),
		serviceRegistries:      make(map[primitives.Address]*ServiceRegistry),
		oneToNs:                make(map[primitives.Address]*OneToN),
		erc20s:                 make(map[primitives.Address]*ERC20),
	}
}

// TokenNetworkRegistryProxy returns the memoized proxy for address,
// constructing it on first use.
func (m *ProxyManager) TokenNetworkRegistryProxy(address primitives.Address) *TokenNetworkRegistry {
	m.mu.RLock()
	p, ok := m.tokenNetworkRegistries[address]
	m.mu.RUnlock()
	if ok {
		return p
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.tokenNetworkRegistries[address]; ok {
		return p
	}
	p = &TokenNetworkRegistry{contract: bind.NewBoundContract(address, m.abis.TokenNetworkRegistry, m.backend, m.backend, m.backend)}
	m.tokenNetworkRegistries[address] = p
	return p
}

// TokenNetworkProxy returns the memoized proxy for address, constructing
// it on first use.
func (m *ProxyManager) TokenNetworkProxy(address primitives.Address) *TokenNetwork {
	m.mu.RLock()
	p, ok := m.tokenNetworks[address]
	m.mu.RUnlock()
	if ok {
		return p
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.tokenNetworks[address]; ok {
		return p
	}
	p = &TokenNetwork{contract: bind.NewBoundContract(address, m.abis.TokenNetwork, m.backend, m.backend, m.backend)}
	m.tokenNetworks[address] = p
	return p
}

// SecretRegistryProxy returns the memoized proxy for address.
func (m *ProxyManager) SecretRegistryProxy(address primitives.Address) *SecretRegistry {
	m.mu.RLock()
	p, ok := m.secretRegistries[address]
	m.mu.RUnlock()
	if ok {
		return p
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.secretRegistries[address]; ok {
		return p
	}
	p = &SecretRegistry{contract: bind.NewBoundContract(address, m.abis.SecretRegistry, m.backend, m.backend, m.backend)}
	m.secretRegistries[address] = p
	return p
}

// UserDepositProxy returns the memoized proxy for address.
func (m *ProxyManager) UserDepositProxy(address primitives.Address) *UserDeposit {
	m.mu.RLock()
	p, ok := m.userDeposits[address]
	m.mu.RUnlock()
	if ok {
		return p
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.userDeposits[address]; ok {
		return p
	}
	p = &UserDeposit{contract: bind.NewBoundContract(address, m.abis.UserDeposit, m.backend, m.backend, m.backend)}
	m.userDeposits[address] = p
	return p
}

// ServiceRegistryProxy returns the memoized proxy for address.
func (m *ProxyManager) ServiceRegistryProxy(address primitives.Address) *ServiceRegistry {
	m.mu.RLock()
	p, ok := m.serviceRegistries[address]
	m.mu.RUnlock()
	if ok {
		return p
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.serviceRegistries[address]; ok {
		return p
	}
	p = &ServiceRegistry{contract: bind.NewBoundContract(address, m.abis.ServiceRegistry, m.backend, m.backend, m.backend)}
	m.serviceRegistries[address] = p
	return p
}

// ERC20Proxy returns the memoized token proxy for address.
func (m *ProxyManager) ERC20Proxy(address primitives.Address) *ERC20 {
	m.mu.RLock()
	p, ok := m.erc20s[address]
	m.mu.RUnlock()
	if ok {
		return p
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.erc20s[address]; ok {
		return p
	}
	p = &ERC20{contract: bind.NewBoundContract(address, m.abis.ERC20, m.backend, m.backend, m.backend)}
	m.erc20s[address] = p
	return p
}

// OneToNProxy returns the memoized proxy for address.
func (m *ProxyManager) OneToNProxy(address primitives.Address) *OneToN {
	m.mu.RLock()
	p, ok := m.oneToNs[address]
	m.mu.RUnlock()
	if ok {
		return p
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.oneToNs[address]; ok {
		return p
	}
	p = &OneToN{contract: bind.NewBoundContract(address, m.abis.OneToN, m.backend, m.backend, m.backend)}
	m.oneToNs[address] = p
	return p
}
