package flashloan

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addrTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func rawLog(topics []common.Hash, data []byte) *types.Log {
	return &types.Log{
		Address:     poolAddr,
		Topics:      topics,
		Data:        data,
		BlockNumber: 12345,
		TxHash:      txHash,
		TxIndex:     1,
		Index:       7,
	}
}

func Test_DecodeLog_Transfer(t *testing.T) {
	log := rawLog(
		[]common.Hash{TopicTransfer, addrTopic(userAddr), addrTopic(senderAddr)},
		word(wei(25)),
	)

	ev, err := DecodeLog(log, 1590000000)
	require.NoError(t, err)
	transfer, ok := ev.(*TransferEvent)
	require.True(t, ok)
	assert.Equal(t, userAddr, transfer.From)
	assert.Equal(t, senderAddr, transfer.To)
	assert.Equal(t, 0, transfer.Value.Cmp(wei(25)))
	assert.Equal(t, uint64(12345), transfer.BlockNumber)
	assert.Equal(t, int64(1590000000), transfer.Timestamp)
	assert.Equal(t, uint(7), transfer.LogIndex)
	assert.Equal(t, poolAddr, transfer.Address)
}

func Test_DecodeLog_Sync(t *testing.T) {
	log := rawLog([]common.Hash{TopicSync}, word(wei(5000)))

	ev, err := DecodeLog(log, 1590000000)
	require.NoError(t, err)
	sync, ok := ev.(*SyncEvent)
	require.True(t, ok)
	assert.Equal(t, 0, sync.Reserve.Cmp(wei(5000)))
}

func Test_DecodeLog_Mint(t *testing.T) {
	log := rawLog([]common.Hash{TopicMint, addrTopic(senderAddr)}, word(wei(50)))

	ev, err := DecodeLog(log, 1590000000)
	require.NoError(t, err)
	mint, ok := ev.(*MintEvent)
	require.True(t, ok)
	assert.Equal(t, senderAddr, mint.Sender)
	assert.Equal(t, 0, mint.Amount.Cmp(wei(50)))
}

func Test_DecodeLog_Burn(t *testing.T) {
	log := rawLog(
		[]common.Hash{TopicBurn, addrTopic(senderAddr), addrTopic(userAddr)},
		word(wei(10)),
	)

	ev, err := DecodeLog(log, 1590000000)
	require.NoError(t, err)
	burn, ok := ev.(*BurnEvent)
	require.True(t, ok)
	assert.Equal(t, senderAddr, burn.Sender)
	assert.Equal(t, userAddr, burn.To)
	assert.Equal(t, 0, burn.Amount.Cmp(wei(10)))
}

func Test_DecodeLog_FlashLoan(t *testing.T) {
	log := rawLog(
		[]common.Hash{TopicFlashLoan, addrTopic(targetAddr), addrTopic(initiatorAddr), addrTopic(tokenAddr)},
		append(word(wei(1000)), word(wei(9))...),
	)

	ev, err := DecodeLog(log, 1590000000)
	require.NoError(t, err)
	loan, ok := ev.(*FlashLoanEvent)
	require.True(t, ok)
	assert.Equal(t, targetAddr, loan.Target)
	assert.Equal(t, initiatorAddr, loan.Initiator)
	assert.Equal(t, tokenAddr, loan.Asset)
	assert.Equal(t, 0, loan.Amount.Cmp(wei(1000)))
	assert.Equal(t, 0, loan.Premium.Cmp(wei(9)))
}

func Test_DecodeLog_PoolCreated(t *testing.T) {
	data := append(word(new(big.Int).SetBytes(poolAddr.Bytes())), word(big.NewInt(3))...)
	log := rawLog([]common.Hash{TopicPoolCreated, addrTopic(tokenAddr)}, data)
	log.Address = factoryAddr

	ev, err := DecodeLog(log, 1590000000)
	require.NoError(t, err)
	created, ok := ev.(*PoolCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, tokenAddr, created.Token)
	assert.Equal(t, poolAddr, created.Pool)
	assert.Equal(t, int64(3), created.Index.Int64())
}

func Test_DecodeLog_UnknownTopicSkipped(t *testing.T) {
	log := rawLog([]common.Hash{common.HexToHash("0xdeadbeef")}, word(wei(1)))

	ev, err := DecodeLog(log, 1590000000)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func Test_DecodeLog_NoTopicsSkipped(t *testing.T) {
	log := rawLog(nil, nil)

	ev, err := DecodeLog(log, 1590000000)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func Test_DecodeLog_MalformedTransferRejected(t *testing.T) {
	log := rawLog([]common.Hash{TopicTransfer, addrTopic(userAddr)}, word(wei(1)))

	_, err := DecodeLog(log, 1590000000)
	assert.Error(t, err)

	log = rawLog([]common.Hash{TopicTransfer, addrTopic(userAddr), addrTopic(senderAddr)}, []byte{0x01})
	_, err = DecodeLog(log, 1590000000)
	assert.Error(t, err)
}

func Test_DecodeLog_MalformedFlashLoanRejected(t *testing.T) {
	log := rawLog(
		[]common.Hash{TopicFlashLoan, addrTopic(targetAddr), addrTopic(initiatorAddr), addrTopic(tokenAddr)},
		word(wei(1000)),
	)

	_, err := DecodeLog(log, 1590000000)
	assert.Error(t, err)
}
