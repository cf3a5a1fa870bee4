package strategy

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// arbABIJSON is the single entry point of the arbitrage contract: it buys
// the marketplace listing with the attached value and atomically sells the
// token into the pool, reverting unless the whole round trip completes
// before the deadline block with at least minProfit left over.
const arbABIJSON = `[
  {"type":"function","name":"buyAndSell","stateMutability":"payable","inputs":[
    {"name":"fulfillment","type":"bytes"},
    {"name":"exchange","type":"address"},
    {"name":"pool","type":"address"},
    {"name":"tokenId","type":"uint256"},
    {"name":"minProfit","type":"uint256"},
    {"name":"deadline","type":"uint256"}
  ],"outputs":[]}
]`

var arbABI = mustParseABI(arbABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// packBuyAndSell encodes the arbitrage contract calldata.
func packBuyAndSell(fulfillment []byte, exchange, pool common.Address, tokenID, minProfit *big.Int, deadline uint64) ([]byte, error) {
	data, err := arbABI.Pack("buyAndSell",
		fulfillment,
		exchange,
		pool,
		tokenID,
		minProfit,
		new(big.Int).SetUint64(deadline),
	)
	if err != nil {
		return nil, fmt.Errorf("strategy: pack buyAndSell: %w", err)
	}
	return data, nil
}
