package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/parlatech/plenum/internal/model"
)

// congressABI is the JSON ABI of the deployed voting contract. Event arguments
// are not indexed, so every field decodes from the log data.
const congressABI = `[
  {"type":"function","name":"createSession","stateMutability":"nonpayable","inputs":[{"name":"date","type":"string"},{"name":"description","type":"string"}],"outputs":[]},
  {"type":"function","name":"addLaw","stateMutability":"nonpayable","inputs":[{"name":"sessionId","type":"uint256"},{"name":"title","type":"string"},{"name":"description","type":"string"}],"outputs":[]},
  {"type":"function","name":"registerVote","stateMutability":"nonpayable","inputs":[{"name":"sessionId","type":"uint256"},{"name":"lawId","type":"uint256"},{"name":"choice","type":"uint8"}],"outputs":[]},
  {"type":"function","name":"finalizeSession","stateMutability":"nonpayable","inputs":[{"name":"sessionId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getSession","stateMutability":"view","inputs":[{"name":"sessionId","type":"uint256"}],"outputs":[{"name":"date","type":"string"},{"name":"description","type":"string"},{"name":"active","type":"bool"},{"name":"lawCount","type":"uint256"}]},
  {"type":"function","name":"getLaw","stateMutability":"view","inputs":[{"name":"sessionId","type":"uint256"},{"name":"lawId","type":"uint256"}],"outputs":[{"name":"title","type":"string"},{"name":"description","type":"string"},{"name":"active","type":"bool"}]},
  {"type":"function","name":"getTally","stateMutability":"view","inputs":[{"name":"sessionId","type":"uint256"},{"name":"lawId","type":"uint256"}],"outputs":[{"name":"favor","type":"uint256"},{"name":"contra","type":"uint256"},{"name":"abstentions","type":"uint256"},{"name":"absent","type":"uint256"}]},
  {"type":"function","name":"sessionCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"isLegislator","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"event","name":"SessionCreated","anonymous":false,"inputs":[{"name":"sessionId","type":"uint256","indexed":false},{"name":"date","type":"string","indexed":false}]},
  {"type":"event","name":"LawAdded","anonymous":false,"inputs":[{"name":"sessionId","type":"uint256","indexed":false},{"name":"lawId","type":"uint256","indexed":false},{"name":"title","type":"string","indexed":false}]},
  {"type":"event","name":"VoteRegistered","anonymous":false,"inputs":[{"name":"sessionId","type":"uint256","indexed":false},{"name":"lawId","type":"uint256","indexed":false},{"name":"voter","type":"address","indexed":false},{"name":"choice","type":"uint8","indexed":false}]},
  {"type":"event","name":"SessionFinalized","anonymous":false,"inputs":[{"name":"sessionId","type":"uint256","indexed":false}]}
]`

// parseContractABI parses the embedded ABI once per gateway.
func parseContractABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(congressABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse contract ABI: %w", err)
	}
	return parsed, nil
}

// decodeLog turns a raw contract log into a typed Event. Logs emitted by
// other events (unknown topic) return ok=false.
func decodeLog(contractABI abi.ABI, log types.Log) (Event, bool, error) {
	if len(log.Topics) == 0 {
		return Event{}, false, nil
	}
	evDef, err := contractABI.EventByID(log.Topics[0])
	if err != nil {
		return Event{}, false, nil
	}

	vals, err := contractABI.Unpack(evDef.Name, log.Data)
	if err != nil {
		return Event{}, false, fmt.Errorf("unpack %s log: %w", evDef.Name, err)
	}

	ev := Event{
		Kind:        EventKind(evDef.Name),
		TxHash:      log.TxHash.Hex(),
		BlockNumber: log.BlockNumber,
	}

	switch ev.Kind {
	case EventSessionCreated:
		if len(vals) < 2 {
			return Event{}, false, fmt.Errorf("SessionCreated log has %d values", len(vals))
		}
		ev.SessionID = toUint64(vals[0])
	case EventLawAdded:
		if len(vals) < 3 {
			return Event{}, false, fmt.Errorf("LawAdded log has %d values", len(vals))
		}
		ev.SessionID = toUint64(vals[0])
		ev.LawID = toUint64(vals[1])
	case EventVoteRegistered:
		if len(vals) < 4 {
			return Event{}, false, fmt.Errorf("VoteRegistered log has %d values", len(vals))
		}
		ev.SessionID = toUint64(vals[0])
		ev.LawID = toUint64(vals[1])
		ev.Voter = fmt.Sprintf("%v", vals[2])
		ev.Choice = model.Choice(toUint8(vals[3]))
	case EventSessionFinalized:
		if len(vals) < 1 {
			return Event{}, false, fmt.Errorf("SessionFinalized log has %d values", len(vals))
		}
		ev.SessionID = toUint64(vals[0])
	default:
		return Event{}, false, nil
	}

	return ev, true, nil
}

func toUint64(v any) uint64 {
	if b, ok := v.(*big.Int); ok {
		return b.Uint64()
	}
	return 0
}

func toUint8(v any) uint8 {
	if u, ok := v.(uint8); ok {
		return u
	}
	if b, ok := v.(*big.Int); ok {
		return uint8(b.Uint64())
	}
	return 0
}
