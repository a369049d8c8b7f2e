package solana

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ybbus/jsonrpc"
)

func decodeJSON(t *testing.T, s string) interface{} {
	var raw interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return raw
}

func TestParseTransactionError_AccountAlreadyInUse(t *testing.T) {
	// The system program reports an existing account as custom error 0
	e, err := ParseTransactionError(decodeJSON(t, `{"InstructionError":[0,{"Custom":0}]}`))
	require.NoError(t, err)

	assert.Equal(t, TransactionErrorInstructionError, e.ErrorKey())
	require.NotNil(t, e.InstructionError())
	assert.Equal(t, 0, e.InstructionError().Index)
	assert.Equal(t, InstructionErrorCustom, e.InstructionError().ErrorKey())
	require.NotNil(t, e.InstructionError().CustomError())
	assert.Equal(t, CustomError(0), *e.InstructionError().CustomError())
}

func TestParseTransactionError_Variants(t *testing.T) {
	e, err := ParseTransactionError(decodeJSON(t, `{"InstructionError":[1,"IncorrectProgramId"]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, e.InstructionError().Index)
	assert.Equal(t, InstructionErrorIncorrectProgramID, e.InstructionError().ErrorKey())
	assert.Nil(t, e.InstructionError().CustomError())

	e, err = ParseTransactionError(decodeJSON(t, `"BlockhashNotFound"`))
	require.NoError(t, err)
	assert.Equal(t, TransactionErrorBlockhashNotFound, e.ErrorKey())
	assert.Nil(t, e.InstructionError())

	e, err = ParseTransactionError(nil)
	assert.NoError(t, err)
	assert.Nil(t, e)

	_, err = ParseTransactionError(decodeJSON(t, `{"A":1,"B":2}`))
	assert.Error(t, err)

	_, err = ParseTransactionError(42.0)
	assert.Error(t, err)
}

func TestParseRPCError(t *testing.T) {
	e, err := ParseRPCError(&jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed",
		Data:    decodeJSON(t, `{"err":{"InstructionError":[0,{"Custom":0}]},"logs":[]}`),
	})
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, CustomError(0), *e.InstructionError().CustomError())

	e, err = ParseRPCError(&jsonrpc.RPCError{Code: -32005, Data: decodeJSON(t, `{"numSlotsBehind":10}`)})
	assert.NoError(t, err)
	assert.Nil(t, e)

	e, err = ParseRPCError(nil)
	assert.NoError(t, err)
	assert.Nil(t, e)
}

func TestTransactionErrorRoundTrip(t *testing.T) {
	e, err := TransactionErrorFromInstructionError(&InstructionError{
		Index: 0,
		Err:   CustomError(0),
	})
	require.NoError(t, err)

	encoded, err := e.JSONString()
	require.NoError(t, err)
	assert.JSONEq(t, `{"InstructionError":[0,{"Custom":0}]}`, encoded)

	parsed, err := ParseTransactionError(decodeJSON(t, encoded))
	require.NoError(t, err)
	assert.Equal(t, e.Error(), parsed.Error())

	encoded, err = NewTransactionError(TransactionErrorDuplicateSignature).JSONString()
	require.NoError(t, err)
	assert.Equal(t, `"DuplicateSignature"`, encoded)
}

func TestParseJSONNumber(t *testing.T) {
	for _, v := range []interface{}{"3", 3.0, json.Number("3")} {
		n, err := parseJSONNumber(v)
		assert.NoError(t, err)
		assert.Equal(t, 3, n)
	}

	_, err := parseJSONNumber(true)
	assert.Error(t, err)
}
