package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Minimal ABI fragments for the sudoswap-style pair factory and pair
// contracts. Only the members the engine actually calls or filters on are
// declared.

const factoryABIJSON = `[
  {"type":"event","name":"NewPair","inputs":[{"name":"poolAddress","type":"address","indexed":false}],"anonymous":false}
]`

const pairABIJSON = `[
  {"type":"function","name":"nft","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getSellNFTQuote","stateMutability":"view","inputs":[{"name":"numNFTs","type":"uint256"}],"outputs":[{"name":"error","type":"uint8"},{"name":"newSpotPrice","type":"uint128"},{"name":"newDelta","type":"uint128"},{"name":"outputAmount","type":"uint256"},{"name":"protocolFee","type":"uint256"}]},
  {"type":"event","name":"SwapNFTInPair","inputs":[],"anonymous":false},
  {"type":"event","name":"SwapNFTOutPair","inputs":[],"anonymous":false},
  {"type":"event","name":"SpotPriceUpdate","inputs":[{"name":"newSpotPrice","type":"uint128","indexed":false}],"anonymous":false},
  {"type":"event","name":"TokenDeposit","inputs":[{"name":"amount","type":"uint256","indexed":false}],"anonymous":false},
  {"type":"event","name":"TokenWithdrawal","inputs":[{"name":"amount","type":"uint256","indexed":false}],"anonymous":false},
  {"type":"event","name":"NFTWithdrawal","inputs":[],"anonymous":false}
]`

var (
	factoryABI = mustParseABI(factoryABIJSON)
	pairABI    = mustParseABI(pairABIJSON)

	newPairTopic = factoryABI.Events["NewPair"].ID

	// Topics that indicate a pool's reserves or pricing changed.
	pairTouchTopics = []common.Hash{
		pairABI.Events["SwapNFTInPair"].ID,
		pairABI.Events["SwapNFTOutPair"].ID,
		pairABI.Events["SpotPriceUpdate"].ID,
		pairABI.Events["TokenDeposit"].ID,
		pairABI.Events["TokenWithdrawal"].ID,
		pairABI.Events["NFTWithdrawal"].ID,
	}
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
