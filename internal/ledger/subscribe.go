package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Subscribe streams decoded contract events of the requested kinds. With no
// kinds given, all four event kinds are delivered. The returned cancel
// function unsubscribes and closes the channel; it is safe to call more than
// once.
func (g *EthGateway) Subscribe(ctx context.Context, kinds ...EventKind) (<-chan Event, func(), error) {
	topics := g.topicsFor(kinds)

	logs := make(chan types.Log, 64)
	sub, err := g.client.SubscribeFilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{g.address},
		Topics:    topics,
	}, logs)
	if err != nil {
		return nil, nil, classifySubmitError(err)
	}

	out := make(chan Event, 64)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case err := <-sub.Err():
				if err != nil {
					g.logger.Warn("ledger subscription dropped", "err", err)
				}
				return
			case l := <-logs:
				ev, ok, derr := decodeLog(g.abi, l)
				if derr != nil {
					g.logger.Warn("undecodable contract log", "tx", l.TxHash.Hex(), "err", derr)
					continue
				}
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			sub.Unsubscribe()
			close(done)
		})
	}
	return out, cancel, nil
}

// topicsFor builds the log filter for the requested event kinds. An empty
// filter matches every event the contract emits.
func (g *EthGateway) topicsFor(kinds []EventKind) [][]common.Hash {
	if len(kinds) == 0 {
		return nil
	}
	var ids []common.Hash
	for _, k := range kinds {
		if ev, ok := g.abi.Events[string(k)]; ok {
			ids = append(ids, ev.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return [][]common.Hash{ids}
}
