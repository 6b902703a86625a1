package blockchain

import (
	"context"
	"math"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// Transitioner is the subset of the transition manager (component L)
// the sync loop needs: hand it a decoded state-change and let it run
// the state machine and persist the result.
type Transitioner interface {
	Transition(ctx context.Context, stateChange interface{}) error
}

// batchSizeConfig bounds the adaptive batch-size search, adapted from
// original_source's bin/raiden/src/services/sync.rs BlockBatchSizeConfig.
type batchSizeConfig struct {
	min     uint64
	max     uint64
	initial uint64
}

// batchSizeAdjuster walks the batch size up or down in log-space so a
// run of failures (node rate-limiting, "too many results" RPC errors)
// backs off geometrically and a run of successes ramps back up the
// same way, rather than linearly, adapted from
// BlockBatchSizeAdjuster::{increase,decrease,batch_size}.
type batchSizeAdjuster struct {
	config      batchSizeConfig
	scaleCurrent float64
	base        float64
	stepSize    float64
}

func newBatchSizeAdjuster(config batchSizeConfig, base, stepSize float64) *batchSizeAdjuster {
	return &batchSizeAdjuster{
		config:       config,
		base:         base,
		stepSize:     stepSize,
		scaleCurrent: math.Log(float64(config.initial)) / math.Log(base),
	}
}

func (a *batchSizeAdjuster) increase() {
	if a.batchSize() >= a.config.max {
		return
	}
	a.scaleCurrent += a.stepSize
}

func (a *batchSizeAdjuster) decrease() {
	if a.batchSize() <= a.config.min {
		return
	}
	a.scaleCurrent -= a.stepSize
}

func (a *batchSizeAdjuster) batchSize() uint64 {
	size := uint64(math.Pow(a.base, a.scaleCurrent))
	if size < a.config.min {
		return a.config.min
	}
	if size > a.config.max {
		return a.config.max
	}
	return size
}

// SyncService fetches logs in adaptively-sized batches between a start
// and end block, decodes each into a state-change and hands it to the
// transition manager, then emits a Block tick once the batch is fully
// processed (component H, spec §4.6).
type SyncService struct {
	client      *ethclient.Client
	decoder     *EventDecoder
	transition  Transitioner
	chainID     *primitives.U256
	addresses   []primitives.Address
	adjuster    *batchSizeAdjuster
}

// NewSyncService builds a sync loop watching addresses (the token
// network registry, every known token network, the secret registry).
func NewSyncService(client *ethclient.Client, decoder *EventDecoder, transition Transitioner, chainID *primitives.U256, addresses []primitives.Address) *SyncService {
	return &SyncService{
		client:     client,
		decoder:    decoder,
		transition: transition,
		chainID:    chainID,
		addresses:  addresses,
		adjuster: newBatchSizeAdjuster(batchSizeConfig{
			min:     5,
			max:     100000,
			initial: 1000,
		}, 2.0, 1.0),
	}
}

// WatchAddress adds a contract address (e.g. a freshly deployed token
// network) to the set of addresses the sync loop filters logs for.
func (s *SyncService) WatchAddress(addr primitives.Address) {
	s.addresses = append(s.addresses, addr)
}

// Sync polls contract logs between startBlock and endBlock in batches,
// transitioning the state machine for every decoded event and for the
// block tick at the end of each batch.
func (s *SyncService) Sync(ctx context.Context, startBlock, endBlock int64) error {
	from := startBlock
	for from < endBlock {
		batch := int64(s.adjuster.batchSize())
		to := from + batch
		if to > endBlock {
			to = endBlock
		}

		query := ethereum.FilterQuery{
			FromBlock: big.NewInt(from),
			ToBlock:   big.NewInt(to),
			Addresses: s.addresses,
		}
		logs, err := s.client.FilterLogs(ctx, query)
		if err != nil {
			log.Warn("blockchain: error fetching logs, backing off", "from", from, "to", to, "err", err)
			s.adjuster.decrease()
			continue
		}

		for _, l := range logs {
			if l.Removed {
				continue
			}
			stateChange, err := s.decoder.Decode(l, s.chainID)
			if err != nil {
				log.Warn("blockchain: could not decode log", "err", err)
				continue
			}
			if stateChange == nil {
				continue
			}
			if err := s.transition.Transition(ctx, stateChange); err != nil {
				log.Error("blockchain: transition failed for decoded event", "err", err)
			}
		}

		header, err := s.client.HeaderByNumber(ctx, big.NewInt(to))
		if err != nil {
			log.Error("blockchain: error fetching block header", "block", to, "err", err)
			continue
		}

		if err := s.transition.Transition(ctx, &channel.Block{
			BlockNumber: header.Number.Int64(),
			BlockHash:   header.Hash(),
		}); err != nil {
			log.Error("blockchain: transition failed for block tick", "block", to, "err", err)
		}

		from = to + 1
		s.adjuster.increase()
	}
	return ctx.Err()
}
