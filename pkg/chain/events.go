package chain

import (
	"encoding/gob"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// ContractSendChannelOpen schedules submitting an openChannel
// transaction for a locally-requested channel (ActionChannelOpen).
type ContractSendChannelOpen struct {
	TokenNetworkAddress primitives.Address
	Partner             primitives.Address
	SettleTimeout       int64
}

func init() {
	gob.Register(&ContractSendChannelOpen{})
}
