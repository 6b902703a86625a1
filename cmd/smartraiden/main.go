// Command smartraiden runs one SmartRaiden node: it loads a private
// key and the deployed contract addresses/ABIs from flags, restores
// (or initializes) the chain state from its sqlite store, starts
// watching the chain for new blocks and contract events, and serves
// the resulting state machine until it receives a termination signal
// (spec §1 Non-goals: "CLI/config parsing... thin wrappers", §6.5 exit
// codes).
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/blockchain"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/chain"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/connectionmanager"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/contracts"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/eventhandler"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/notify"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/transaction"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/transition"
)

// config is every flag the node reads, kept separate from flag parsing
// so the rest of main stays testable against a plain struct.
type config struct {
	keyFile               string
	ethEndpoint           string
	dataDir               string
	chainID               int64
	registryAddress       primitives.Address
	registryDeployBlock   int64
	secretRegistryAddress primitives.Address
	settleTimeout         int64
	revealTimeout         int64
	abiDir                string
	connectTokenNetwork   string
	connectFunds          string
}

func main() {
	app := &cli.App{
		Name:  "smartraiden",
		Usage: "run a SmartRaiden payment channel node",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key-file", Required: true, Usage: "path to a hex-encoded ECDSA private key"},
			&cli.StringFlag{Name: "eth-rpc-endpoint", Required: true, Usage: "Ethereum JSON-RPC endpoint"},
			&cli.StringFlag{Name: "datadir", Value: "./smartraiden-data", Usage: "directory holding the sqlite state store"},
			&cli.Int64Flag{Name: "chain-id", Required: true},
			&cli.StringFlag{Name: "registry-address", Required: true},
			&cli.Int64Flag{Name: "registry-deploy-block", Value: 1},
			&cli.StringFlag{Name: "secret-registry-address", Required: true},
			&cli.Int64Flag{Name: "settle-timeout", Value: 500},
			&cli.Int64Flag{Name: "reveal-timeout", Value: 50},
			&cli.StringFlag{Name: "abi-dir", Required: true, Usage: "directory with token_network_registry.json, token_network.json, secret_registry.json, user_deposit.json, service_registry.json, one_to_n.json, erc20.json"},
			&cli.StringFlag{Name: "connect-token-network", Usage: "if set, automatically maintain funded channels in this token network"},
			&cli.StringFlag{Name: "connect-funds", Value: "0", Usage: "total funds (wei) to spread across automatically opened channels"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Error("smartraiden: fatal", "err", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config{
		keyFile:               c.String("key-file"),
		ethEndpoint:           c.String("eth-rpc-endpoint"),
		dataDir:               c.String("datadir"),
		chainID:               c.Int64("chain-id"),
		registryAddress:       common.HexToAddress(c.String("registry-address")),
		registryDeployBlock:   c.Int64("registry-deploy-block"),
		secretRegistryAddress: common.HexToAddress(c.String("secret-registry-address")),
		settleTimeout:         c.Int64("settle-timeout"),
		revealTimeout:         c.Int64("reveal-timeout"),
		abiDir:                c.String("abi-dir"),
		connectTokenNetwork:   c.String("connect-token-network"),
		connectFunds:          c.String("connect-funds"),
	}

	key, err := crypto.LoadECDSA(cfg.keyFile)
	if err != nil {
		return fmt.Errorf("smartraiden: loading private key: %w", err)
	}
	us := crypto.PubkeyToAddress(key.PublicKey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := ethclient.DialContext(ctx, cfg.ethEndpoint)
	if err != nil {
		return fmt.Errorf("smartraiden: dialing eth endpoint: %w", err)
	}

	abis, err := loadABIs(cfg.abiDir)
	if err != nil {
		return fmt.Errorf("smartraiden: loading ABIs: %w", err)
	}
	proxies := contracts.NewProxyManager(client, *abis)

	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return fmt.Errorf("smartraiden: creating datadir: %w", err)
	}
	storage, err := transition.OpenStorage(filepath.Join(cfg.dataDir, "smartraiden.db"))
	if err != nil {
		return fmt.Errorf("smartraiden: opening storage: %w", err)
	}
	defer storage.Close()

	notifier := notify.New()

	startingNonce, err := client.PendingNonceAt(ctx, us)
	if err != nil {
		return fmt.Errorf("smartraiden: reading starting nonce: %w", err)
	}
	account := transaction.NewSingleWriterAccount(us, startingNonce)
	executor := transaction.NewExecutor(newEthGasEstimator(client), account)
	chainIDBig := big.NewInt(cfg.chainID)

	var manager *transition.Manager
	runner := newTxRunner(key, us, chainIDBig, cfg.secretRegistryAddress, proxies, executor, func() *chain.State { return manager.State() }, startingNonce)
	transport := newLoggingTransport()
	handler := eventhandler.New(key, us, transport, runner, notifier)

	manager, err = transition.RestoreOrInit(storage, primitives.NewU256(cfg.chainID), us, cfg.registryAddress, cfg.registryDeployBlock, time.Now().UnixNano(), handler)
	if err != nil {
		return fmt.Errorf("smartraiden: restoring chain state: %w", err)
	}

	decoderABIs := map[primitives.Address]abi.ABI{
		cfg.registryAddress:       abis.TokenNetworkRegistry,
		cfg.secretRegistryAddress: abis.SecretRegistry,
	}
	decoder := blockchain.NewEventDecoder(decoderABIs)
	watched := []primitives.Address{cfg.registryAddress, cfg.secretRegistryAddress}
	for addr := range manager.State().TokenNetworkRegistries[cfg.registryAddress].TokenNetworks {
		decoder.Watch(addr, abis.TokenNetwork)
		watched = append(watched, addr)
	}

	sync := blockchain.NewSyncService(client, decoder, manager, primitives.NewU256(cfg.chainID), watched)
	alarm := blockchain.NewAlarmTask(client, sync)
	lastSeen := manager.State().BlockNumber
	alarm.RegisterCallback(func(blockNumber int64) error {
		if err := sync.Sync(ctx, lastSeen+1, blockNumber); err != nil {
			log.Warn("smartraiden: sync failed for range", "from", lastSeen+1, "to", blockNumber, "err", err)
		}
		lastSeen = blockNumber
		for addr := range manager.State().TokenNetworkRegistries[cfg.registryAddress].TokenNetworks {
			found := false
			for _, w := range watched {
				if w == addr {
					found = true
					break
				}
			}
			if !found {
				decoder.Watch(addr, abis.TokenNetwork)
				sync.WatchAddress(addr)
				watched = append(watched, addr)
			}
		}
		return nil
	})
	alarm.Start()
	defer alarm.Stop()

	if cfg.connectTokenNetwork != "" {
		funds, ok := new(big.Int).SetString(cfg.connectFunds, 10)
		if !ok {
			return fmt.Errorf("smartraiden: invalid connect-funds %q", cfg.connectFunds)
		}
		tokenNetworkAddress := common.HexToAddress(cfg.connectTokenNetwork)
		n := newNode(manager, proxies, executor, account, key, chainIDBig, us)
		cm := connectionmanager.New(n, newNetworkView(manager), us, tokenNetworkAddress, cfg.settleTimeout, cfg.revealTimeout)
		if err := cm.Connect(ctx, funds, 3, 0.4); err != nil {
			log.Warn("smartraiden: initial connect failed", "err", err)
		}
	}

	log.Info("smartraiden: node started", "address", us.Hex())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("smartraiden: shutting down")
	return nil
}

// loadABIs reads every contract ABI the node proxies need from
// abi-dir/<name>.json, one file per contracts.ContractABIs field
// (token_network_registry.json, token_network.json, ..., erc20.json).
func loadABIs(dir string) (*contracts.ContractABIs, error) {
	load := func(name string) (abi.ABI, error) {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return abi.ABI{}, err
		}
		defer f.Close()
		return abi.JSON(f)
	}

	registry, err := load("token_network_registry.json")
	if err != nil {
		return nil, err
	}
	tokenNetwork, err := load("token_network.json")
	if err != nil {
		return nil, err
	}
	secretRegistry, err := load("secret_registry.json")
	if err != nil {
		return nil, err
	}
	userDeposit, err := load("user_deposit.json")
	if err != nil {
		return nil, err
	}
	serviceRegistry, err := load("service_registry.json")
	if err != nil {
		return nil, err
	}
	oneToN, err := load("one_to_n.json")
	if err != nil {
		return nil, err
	}
	erc20, err := load("erc20.json")
	if err != nil {
		return nil, err
	}
	return &contracts.ContractABIs{
		TokenNetworkRegistry: registry,
		TokenNetwork:         tokenNetwork,
		SecretRegistry:       secretRegistry,
		UserDeposit:          userDeposit,
		ServiceRegistry:      serviceRegistry,
		OneToN:               oneToN,
		ERC20:                erc20,
	}, nil
}
