package transition

import (
	"path/filepath"
	"testing"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/chain"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smartraiden-test.db")
	s, err := OpenStorage(path)
	if err != nil {
		t.Fatalf("OpenStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreAndReplayStateChanges(t *testing.T) {
	s := openTestStorage(t)

	var ids []string
	for i := int64(1); i <= 3; i++ {
		sc := &channel.Block{BlockNumber: i, BlockHash: primitives.Keccak256([]byte{byte(i)})}
		id, err := s.StoreStateChange(sc)
		if err != nil {
			t.Fatalf("StoreStateChange %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	all, err := s.StateChangesSince("")
	if err != nil {
		t.Fatalf("StateChangesSince: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("StateChangesSince(\"\") returned %d entries, want 3", len(all))
	}
	first, ok := all[0].(*channel.Block)
	if !ok {
		t.Fatalf("decoded state change has type %T, want *channel.Block", all[0])
	}
	if first.BlockNumber != 1 {
		t.Fatalf("first replayed state change has BlockNumber %d, want 1", first.BlockNumber)
	}

	since, err := s.StateChangesSince(ids[0])
	if err != nil {
		t.Fatalf("StateChangesSince(ids[0]): %v", err)
	}
	if len(since) != 2 {
		t.Fatalf("StateChangesSince(ids[0]) returned %d entries, want 2 (replay resumes strictly after the given id)", len(since))
	}
}

func TestStoreAndLoadSnapshotRoundtrips(t *testing.T) {
	s := openTestStorage(t)

	us := primitives.Address{0x01}
	state := chain.NewState(primitives.NewU256(1), us, 42, primitives.Keccak256([]byte("block")), 7)
	reg := chain.NewTokenNetworkRegistryState(primitives.Address{0xAA})
	state.TokenNetworkRegistries[reg.Address] = reg

	if err := s.StoreSnapshot(state, "", 0); err != nil {
		t.Fatalf("StoreSnapshot: %v", err)
	}

	snap, err := s.LatestSnapshot()
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if snap == nil {
		t.Fatalf("LatestSnapshot returned nil after storing a snapshot")
	}
	if snap.State.BlockNumber != 42 {
		t.Fatalf("restored snapshot BlockNumber = %d, want 42", snap.State.BlockNumber)
	}
	if snap.State.OurAddress != us {
		t.Fatalf("restored snapshot OurAddress = %s, want %s", snap.State.OurAddress.Hex(), us.Hex())
	}
	if _, ok := snap.State.TokenNetworkRegistries[reg.Address]; !ok {
		t.Fatalf("restored snapshot lost its token network registry")
	}
}

func TestLatestSnapshotNilWhenNoneStored(t *testing.T) {
	s := openTestStorage(t)
	snap, err := s.LatestSnapshot()
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if snap != nil {
		t.Fatalf("LatestSnapshot returned a snapshot before any was stored")
	}
}

func TestSettingRoundtrip(t *testing.T) {
	s := openTestStorage(t)

	if _, ok, err := s.Setting("missing"); err != nil || ok {
		t.Fatalf("Setting(missing) = (_, %v, %v), want (_, false, nil)", ok, err)
	}

	if err := s.SetSetting("k", "v1"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	v, ok, err := s.Setting("k")
	if err != nil || !ok || v != "v1" {
		t.Fatalf("Setting(k) = (%q, %v, %v), want (v1, true, nil)", v, ok, err)
	}

	if err := s.SetSetting("k", "v2"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	v, ok, err = s.Setting("k")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("Setting(k) after overwrite = (%q, %v, %v), want (v2, true, nil)", v, ok, err)
	}
}
