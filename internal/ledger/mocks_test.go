package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// MockChain implements Chain for testing
type MockChain struct {
	mu       sync.Mutex
	Handler  func(msg ethereum.CallMsg) ([]byte, error)
	Receipts []ReceiptResult
	Calls    []ethereum.CallMsg
	lookups  int
}

type ReceiptResult struct {
	Receipt *types.Receipt
	Err     error
}

func (m *MockChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, msg)
	m.mu.Unlock()
	return m.Handler(msg)
}

func (m *MockChain) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Receipts) == 0 {
		return nil, ethereum.NotFound
	}
	i := m.lookups
	if i >= len(m.Receipts) {
		i = len(m.Receipts) - 1
	}
	m.lookups++
	return m.Receipts[i].Receipt, m.Receipts[i].Err
}

// MockSender implements Sender for testing
type MockSender struct {
	Err   error
	Sent  []SentTx
	Nonce uint64
}

type SentTx struct {
	From     common.Address
	To       common.Address
	Value    *big.Int
	Data     []byte
	Function string
}

func (m *MockSender) SendTransaction(_ context.Context, from, to common.Address, value *big.Int, data []byte, function string) (*types.Transaction, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.Sent = append(m.Sent, SentTx{From: from, To: to, Value: value, Data: data, Function: function})
	m.Nonce++
	return types.NewTx(&types.DynamicFeeTx{Nonce: m.Nonce, To: &to, Value: value, Data: data}), nil
}

// revertError mimics the JSON-RPC error returned for a reverted eth_call.
type revertError struct {
	reason string
}

func (e revertError) Error() string {
	return "execution reverted: " + e.reason
}

func (e revertError) ErrorCode() int {
	return 3
}

func (e revertError) ErrorData() interface{} {
	return hexutil.Encode(revertData(e.reason))
}

func revertData(reason string) []byte {
	strType, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: strType}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	return append(common.FromHex("0x08c379a0"), packed...)
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")
