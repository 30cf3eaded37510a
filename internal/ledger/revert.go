package ledger

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const executionReverted = "execution reverted"

// revertReason extracts the reason string of a reverted call. ok is false
// when err is not a revert.
func revertReason(err error) (reason string, ok bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, isStr := dataErr.ErrorData().(string); isStr {
			if raw, decErr := hexutil.Decode(hexData); decErr == nil {
				if r, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return r, true
				}
			}
		}
	}

	msg := err.Error()
	i := strings.Index(strings.ToLower(msg), executionReverted)
	if i < 0 {
		return "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(msg[i+len(executionReverted):], ":"))
	if rest == "" {
		return executionReverted, true
	}
	return rest, true
}
