// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"
	"sort"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyRoundRobin = "roundrobin"
	StrategySender     = "sender"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyRoundRobin: roundRobinSelect,
	StrategySender:     senderSelect,
}

// Func defines a function that takes a mempool of transactions grouped by
// sender and selects howMany of them in an order based on the functions
// strategy. All selector functions MUST respect nonce ordering. Receiving -1
// for howMany must return all the transactions in the strategies ordering.
type Func func(transactions map[string][]database.Tx, howMany int) []database.Tx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// roundRobinSelect takes the lowest nonce transaction from each sender in
// turn, so no single sender can fill a block while others wait.
func roundRobinSelect(m map[string][]database.Tx, howMany int) []database.Tx {
	senders := sortedSenders(m)

	// Pick the first transaction in the slice for each sender. Each pass
	// represents a new row of selections.
	var final []database.Tx
	for {
		var picked bool
		for _, sender := range senders {
			if howMany != -1 && len(final) == howMany {
				return final
			}

			if len(m[sender]) > 0 {
				final = append(final, m[sender][0])
				m[sender] = m[sender][1:]
				picked = true
			}
		}

		if !picked {
			return final
		}
	}
}

// senderSelect drains the transactions of each sender in address order.
func senderSelect(m map[string][]database.Tx, howMany int) []database.Tx {
	var final []database.Tx

	for _, sender := range sortedSenders(m) {
		for _, tx := range m[sender] {
			if howMany != -1 && len(final) == howMany {
				return final
			}
			final = append(final, tx)
		}
	}

	return final
}

// sortedSenders orders each sender's transactions by nonce and returns the
// senders in address order.
func sortedSenders(m map[string][]database.Tx) []string {
	senders := make([]string, 0, len(m))
	for sender, trans := range m {
		if len(trans) > 1 {
			sort.Sort(byNonce(trans))
		}
		senders = append(senders, sender)
	}
	sort.Strings(senders)

	return senders
}

// =============================================================================

// byNonce provides sorting support by the transaction nonce value.
type byNonce []database.Tx

// Len returns the number of transactions in the list.
func (bn byNonce) Len() int {
	return len(bn)
}

// Less helps to sort the list by nonce in ascending order to keep the
// transactions in the right order of processing.
func (bn byNonce) Less(i, j int) bool {
	return bn[i].Nonce < bn[j].Nonce
}

// Swap moves transactions in the order of the nonce value.
func (bn byNonce) Swap(i, j int) {
	bn[i], bn[j] = bn[j], bn[i]
}
