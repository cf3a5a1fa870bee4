package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ResolvedOrder is the full marketplace order behind a streamed listing,
// fetched on demand before a transaction is built. FulfillmentData is the
// marketplace-encoded order blob the arbitrage contract forwards to the
// exchange contract when buying the listing.
type ResolvedOrder struct {
	OrderHash       string
	Fillable        bool
	PriceWei        *big.Int
	Collection      common.Address
	TokenID         *big.Int
	ExchangeAddress common.Address
	FulfillmentData []byte
}

// ArbAttemptStatus tracks the lifecycle of a submitted arbitrage attempt.
type ArbAttemptStatus string

const (
	ArbAttemptSubmitted ArbAttemptStatus = "submitted"
	ArbAttemptRejected  ArbAttemptStatus = "rejected"
	ArbAttemptExpired   ArbAttemptStatus = "expired"
)

// ArbAttempt is the persistent record of one emitted arbitrage transaction,
// written by the executor for later PnL accounting.
type ArbAttempt struct {
	ID                string
	OrderHash         string
	Pool              common.Address
	Collection        common.Address
	TokenID           string
	ListingPriceWei   string
	ExpectedProfitWei string
	DeadlineBlock     uint64
	TxHash            string
	Status            ArbAttemptStatus
	Detail            string
	CreatedAt         time.Time
}
