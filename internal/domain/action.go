package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ActionKind discriminates the action variants a strategy can emit. Each
// kind is handled by exactly one registered executor.
type ActionKind string

const (
	ActionKindSubmitTransaction ActionKind = "submit_transaction"
)

// Action is a side effect requested by a strategy. The engine routes it to
// the executor registered for its kind.
type Action interface {
	Kind() ActionKind
	// ActionID is a unique identifier used for dedup and record keeping.
	ActionID() string
}

// SubmitTransactionAction asks the transaction executor to sign and submit
// a call to the arbitrage contract. DeadlineBlock is embedded in the
// calldata so a stale transaction reverts instead of executing against
// moved pool state; the executor additionally refuses to submit once the
// chain head has passed it.
type SubmitTransactionAction struct {
	ID            string
	To            common.Address
	Data          []byte
	ValueWei      *big.Int
	GasLimit      uint64
	DeadlineBlock uint64

	// Provenance, for records and notifications.
	OrderHash         string
	Pool              common.Address
	Collection        common.Address
	TokenID           *big.Int
	ListingPriceWei   *big.Int
	ExpectedProfitWei *big.Int
	CreatedAt         time.Time
}

// Kind implements Action.
func (*SubmitTransactionAction) Kind() ActionKind { return ActionKindSubmitTransaction }

// ActionID implements Action.
func (a *SubmitTransactionAction) ActionID() string { return a.ID }
