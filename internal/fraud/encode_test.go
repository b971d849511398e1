package fraud

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestFeatureNames(t *testing.T) {
	enc := NewEncoder(quietLogger())
	assert.Equal(t, []string{
		"amount", "oldbalanceorg", "newbalanceorig", "oldbalancedest", "newbalancedest",
		"balance_delta_orig", "balance_delta_dest", "emptied_account",
		"type_CASH_OUT", "type_DEBIT", "type_PAYMENT", "type_TRANSFER",
	}, enc.FeatureNames())
}

func TestFromInput(t *testing.T) {
	tx := FromInput("CASH_OUT", 100000, 100000)
	assert.Equal(t, 0.0, tx.NewBalanceOrig)
	assert.Equal(t, 0.0, tx.OldBalanceDest)
	assert.Equal(t, 100000.0, tx.NewBalanceDest)
	assert.Equal(t, -100000.0, tx.BalanceDeltaOrig)
	assert.Equal(t, 100000.0, tx.BalanceDeltaDest)
	assert.True(t, tx.EmptiedAccount)

	partial := FromInput("PAYMENT", 10, 50)
	assert.Equal(t, 40.0, partial.NewBalanceOrig)
	assert.False(t, partial.EmptiedAccount)

	// A zero starting balance is not an emptied account.
	zero := FromInput("PAYMENT", 0, 0)
	assert.False(t, zero.EmptiedAccount)
}

// A snapshot row and the same transaction entered by hand encode to the
// same vector.
func TestEncodingParity(t *testing.T) {
	enc := NewEncoder(quietLogger())
	snapshot := Transaction{
		Type:           "TRANSFER",
		Amount:         500,
		OldBalanceOrg:  500,
		NewBalanceOrig: 0,
		OldBalanceDest: 0,
		NewBalanceDest: 500,
	}
	snapshot.Engineer()

	assert.Equal(t, enc.Encode(snapshot), enc.Encode(FromInput("TRANSFER", 500, 500)))
}

func TestEncodeCategories(t *testing.T) {
	enc := NewEncoder(quietLogger())
	cats := func(typ string) []float64 {
		x := enc.Encode(Transaction{Type: typ})
		return x[len(x)-4:]
	}
	assert.Equal(t, []float64{0, 0, 0, 0}, cats("CASH_IN"))
	assert.Equal(t, []float64{1, 0, 0, 0}, cats("CASH_OUT"))
	assert.Equal(t, []float64{0, 0, 0, 1}, cats("transfer"))
	assert.Equal(t, []float64{0, 0, 0, 0}, cats("WIRE"))

	assert.True(t, ValidType("debit"))
	assert.False(t, ValidType("WIRE"))
}

func TestMatrix(t *testing.T) {
	enc := NewEncoder(quietLogger())
	X, y := enc.Matrix([]Transaction{{Type: "DEBIT", IsFraud: true}, {Type: "PAYMENT"}})
	require.Len(t, X, 2)
	assert.Len(t, X[0], len(enc.FeatureNames()))
	assert.Equal(t, []int{1, 0}, y)
}
