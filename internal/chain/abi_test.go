package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestEventTopicsMatchSignatures(t *testing.T) {
	require.Equal(t, crypto.Keccak256Hash([]byte("NewPair(address)")), newPairTopic)

	require.Len(t, pairTouchTopics, 6)
	for _, sig := range []string{
		"SwapNFTInPair()",
		"SwapNFTOutPair()",
		"SpotPriceUpdate(uint128)",
		"TokenDeposit(uint256)",
		"TokenWithdrawal(uint256)",
		"NFTWithdrawal()",
	} {
		require.Contains(t, pairTouchTopics, crypto.Keccak256Hash([]byte(sig)), sig)
	}
}
