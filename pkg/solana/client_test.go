package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureStatus(t *testing.T) {
	zero, one := 0, 1

	testCases := []struct {
		s         SignatureStatus
		confirmed bool
		finalized bool
	}{
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: "",
			},
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: "random",
			},
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: confirmationStatusProcessed,
			},
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &one,
				ConfirmationStatus: "",
			},
			confirmed: true,
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: confirmationStatusConfirmed,
			},
			confirmed: true,
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ErrorResult:        nil,
				Confirmations:      &zero,
				ConfirmationStatus: confirmationStatusFinalized,
			},
			confirmed: true,
			finalized: true,
		},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.confirmed, tc.s.Confirmed())
		assert.Equal(t, tc.finalized, tc.s.Finalized())
	}
}

type rpcHandler func(params []json.RawMessage) (result interface{}, rpcErr map[string]interface{})

func newTestRPCServer(t *testing.T, handlers map[string]rpcHandler) Client {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int               `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		handler, ok := handlers[req.Method]
		require.True(t, ok, "unexpected method %s", req.Method)

		result, rpcErr := handler(req.Params)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	return New(server.URL)
}

func TestClient_GetAccountInfo(t *testing.T) {
	owner := ed25519.PublicKey(bytes.Repeat([]byte{1}, 32))
	existing := ed25519.PublicKey(bytes.Repeat([]byte{2}, 32))

	c := newTestRPCServer(t, map[string]rpcHandler{
		"getAccountInfo": func(params []json.RawMessage) (interface{}, map[string]interface{}) {
			var addr string
			require.NoError(t, json.Unmarshal(params[0], &addr))

			if addr != base58.Encode(existing) {
				return map[string]interface{}{"context": map[string]interface{}{"slot": 1}, "value": nil}, nil
			}

			return map[string]interface{}{
				"context": map[string]interface{}{"slot": 1},
				"value": map[string]interface{}{
					"lamports":   1000,
					"owner":      base58.Encode(owner),
					"data":       []string{base64.StdEncoding.EncodeToString([]byte{5, 0, 0, 0}), "base64"},
					"executable": false,
				},
			}, nil
		},
	})

	info, err := c.GetAccountInfo(existing, CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, owner, info.Owner)
	assert.EqualValues(t, 1000, info.Lamports)
	assert.Equal(t, []byte{5, 0, 0, 0}, info.Data)

	_, err = c.GetAccountInfo(owner, CommitmentConfirmed)
	assert.Equal(t, ErrNoAccountInfo, err)
}

func TestClient_SubmitTransaction_PreflightFailure(t *testing.T) {
	payer := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{3}, 32))
	program := ed25519.PublicKey(bytes.Repeat([]byte{4}, 32))

	txn := NewTransaction(payer.Public().(ed25519.PublicKey), NewInstruction(program, nil))
	txn.SetBlockhash(Blockhash{1})
	require.NoError(t, txn.Sign(payer))

	c := newTestRPCServer(t, map[string]rpcHandler{
		"sendTransaction": func(params []json.RawMessage) (interface{}, map[string]interface{}) {
			var encoded string
			require.NoError(t, json.Unmarshal(params[0], &encoded))

			raw, err := base64.StdEncoding.DecodeString(encoded)
			require.NoError(t, err)

			var decoded Transaction
			require.NoError(t, decoded.Unmarshal(raw))
			assert.Equal(t, txn.Signature(), decoded.Signature())

			return nil, map[string]interface{}{
				"code":    -32002,
				"message": "Transaction simulation failed",
				"data": map[string]interface{}{
					"err": map[string]interface{}{
						"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 0}},
					},
				},
			}
		},
	})

	sig, err := c.SubmitTransaction(txn, CommitmentConfirmed)
	require.Error(t, err)
	assert.Equal(t, txn.Signature(), sig)

	var txErr *TransactionError
	require.True(t, errors.As(err, &txErr))
	require.NotNil(t, txErr.InstructionError())
	assert.Equal(t, CustomError(0), *txErr.InstructionError().CustomError())
}

func TestClient_GetSignatureStatuses(t *testing.T) {
	c := newTestRPCServer(t, map[string]rpcHandler{
		"getSignatureStatuses": func(params []json.RawMessage) (interface{}, map[string]interface{}) {
			return map[string]interface{}{
				"context": map[string]interface{}{"slot": 1},
				"value": []interface{}{
					nil,
					map[string]interface{}{"slot": 10, "confirmations": nil, "confirmationStatus": "finalized", "err": nil},
					map[string]interface{}{"slot": 11, "confirmations": 1, "confirmationStatus": "confirmed", "err": "DuplicateSignature"},
				},
			}, nil
		},
	})

	statuses, err := c.GetSignatureStatuses([]Signature{{1}, {2}, {3}})
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	assert.Nil(t, statuses[0])

	require.NotNil(t, statuses[1])
	assert.True(t, statuses[1].Finalized())
	assert.Nil(t, statuses[1].ErrorResult)

	require.NotNil(t, statuses[2])
	assert.True(t, statuses[2].Confirmed())
	assert.False(t, statuses[2].Finalized())
	require.NotNil(t, statuses[2].ErrorResult)
	assert.Equal(t, TransactionErrorDuplicateSignature, statuses[2].ErrorResult.ErrorKey())
}

func TestClient_RequestAirdrop(t *testing.T) {
	expected := Signature{9, 9, 9}

	c := newTestRPCServer(t, map[string]rpcHandler{
		"requestAirdrop": func(params []json.RawMessage) (interface{}, map[string]interface{}) {
			var lamports uint64
			require.NoError(t, json.Unmarshal(params[1], &lamports))
			assert.EqualValues(t, LamportsPerSol, lamports)
			return base58.Encode(expected[:]), nil
		},
		"getBalance": func(params []json.RawMessage) (interface{}, map[string]interface{}) {
			return map[string]interface{}{"context": map[string]interface{}{"slot": 1}, "value": 42}, nil
		},
	})

	account := ed25519.PublicKey(bytes.Repeat([]byte{7}, 32))

	sig, err := c.RequestAirdrop(account, LamportsPerSol, CommitmentFinalized)
	require.NoError(t, err)
	assert.Equal(t, expected, sig)

	balance, err := c.GetBalance(account, CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 42, balance)
}

func TestParseCommitment(t *testing.T) {
	for _, c := range []Commitment{CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized} {
		parsed, err := ParseCommitment(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	_, err := ParseCommitment("max")
	assert.Error(t, err)
}
