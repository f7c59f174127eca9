// Package broadcaster maintains the live set of fee-relay candidates for each
// network and implements the fee-ranked selection used to route transactions
// through a third-party relayer.
package broadcaster

import (
	"math/big"
	"sync"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
)

// ConnectionStatus is the directory's per-network connection state:
// Disconnected -> Searching -> {Connected, AllUnavailable, Error}, with
// Connected -> Searching on topology change and any state -> Disconnected on
// transport loss. Transitions are driven by the external relay-network
// capability; the directory only aggregates.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusSearching
	StatusConnected
	StatusAllUnavailable
	StatusError
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusSearching:
		return "searching"
	case StatusConnected:
		return "connected"
	case StatusAllUnavailable:
		return "all_unavailable"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// validTransition encodes the connection state machine.
func validTransition(from, to ConnectionStatus) bool {
	if to == StatusDisconnected {
		// Transport loss is legal from anywhere.
		return true
	}
	switch from {
	case StatusDisconnected:
		return to == StatusSearching
	case StatusSearching:
		return to == StatusConnected || to == StatusAllUnavailable || to == StatusError
	case StatusConnected:
		return to == StatusSearching
	case StatusAllUnavailable, StatusError:
		return to == StatusSearching
	default:
		return false
	}
}

// Candidate is one live fee-relay node. Candidates are refreshed continuously
// and never persisted; every transaction attempt re-queries the directory.
type Candidate struct {
	RelayAddress    string
	FeePerUnitGas   *big.Int
	FeesID          string
	SupportedAssets []common.Address
}

// SupportsAsset reports whether the candidate quotes fees in the given asset.
func (c Candidate) SupportsAsset(asset common.Address) bool {
	for _, a := range c.SupportedAssets {
		if a == asset {
			return true
		}
	}
	return false
}

// Directory aggregates the relay network's peer-discovery events into a
// per-network connection status and candidate list. It is the only resource
// shared across concurrent transaction attempts; attempts read snapshots and
// never mutate it.
type Directory struct {
	mu         sync.RWMutex
	status     map[uint64]ConnectionStatus
	candidates map[uint64][]Candidate
	blocked    map[string]struct{}
}

// NewDirectory creates an empty directory. All networks start Disconnected.
func NewDirectory() *Directory {
	return &Directory{
		status:     make(map[uint64]ConnectionStatus),
		candidates: make(map[uint64][]Candidate),
		blocked:    make(map[string]struct{}),
	}
}

// HandleStatusEvent applies a connection-status event from the relay-network
// capability. Events that violate the state machine are dropped with a log.
func (d *Directory) HandleStatusEvent(chainID uint64, status ConnectionStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applyStatus(chainID, status)
}

// applyStatus performs one guarded transition. Caller holds d.mu.
func (d *Directory) applyStatus(chainID uint64, status ConnectionStatus) {
	current := d.status[chainID]
	if current == status {
		return
	}
	if !validTransition(current, status) {
		logger.WithFields(logger.Fields{
			"chain_id": chainID,
			"from":     current.String(),
			"to":       status.String(),
		}).Debug("broadcaster status event dropped: invalid transition")
		return
	}
	d.status[chainID] = status
	if status == StatusDisconnected {
		delete(d.candidates, chainID)
	}
	logger.WithFields(logger.Fields{
		"chain_id": chainID,
		"from":     current.String(),
		"to":       status.String(),
	}).Debug("broadcaster connection status changed")
}

// HandleCandidateUpdate replaces the candidate list for a network in response
// to a peer-discovery event, and settles the status to Connected or
// AllUnavailable accordingly. The settle obeys the same state machine as
// status events; a candidate event implies discovery is running, so a network
// not currently in Searching is stepped through it first.
func (d *Directory) HandleCandidateUpdate(chainID uint64, candidates []Candidate) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.candidates[chainID] = append([]Candidate(nil), candidates...)

	target := StatusConnected
	if len(candidates) == 0 {
		target = StatusAllUnavailable
	}
	if current := d.status[chainID]; current != target && !validTransition(current, target) {
		d.applyStatus(chainID, StatusSearching)
	}
	d.applyStatus(chainID, target)
}

// Status returns the current connection status for a network.
func (d *Directory) Status(chainID uint64) ConnectionStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status[chainID]
}

// Snapshot returns a copy of the live candidate list with blocked relays
// filtered out, plus the status at capture time. Safe to hold across the
// whole attempt; later directory updates don't affect it.
func (d *Directory) Snapshot(chainID uint64) ([]Candidate, ConnectionStatus) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Candidate
	for _, c := range d.candidates[chainID] {
		if _, blocked := d.blocked[c.RelayAddress]; blocked {
			continue
		}
		out = append(out, c)
	}
	return out, d.status[chainID]
}

// Block excludes a relay from all future snapshots and selections, typically
// after a failure attributed to it.
func (d *Directory) Block(relayAddress string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocked[relayAddress] = struct{}{}
}

// Unblock re-admits a previously blocked relay.
func (d *Directory) Unblock(relayAddress string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.blocked, relayAddress)
}

// IsBlocked reports whether a relay is currently excluded.
func (d *Directory) IsBlocked(relayAddress string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, blocked := d.blocked[relayAddress]
	return blocked
}
