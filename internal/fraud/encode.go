package fraud

import (
	"log/slog"
	"slices"
	"strings"
)

// Categories is the fixed set of transaction types, in encoding order.
var Categories = []string{"CASH_IN", "CASH_OUT", "DEBIT", "PAYMENT", "TRANSFER"}

var numericFeatures = []string{
	"amount",
	"oldbalanceorg",
	"newbalanceorig",
	"oldbalancedest",
	"newbalancedest",
	"balance_delta_orig",
	"balance_delta_dest",
	"emptied_account",
}

// Encoder turns transactions into feature vectors. The first category is
// the reference level and gets no column.
type Encoder struct {
	Categories []string
	logger     *slog.Logger
}

// NewEncoder returns an encoder over the fixed category set.
func NewEncoder(logger *slog.Logger) *Encoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Encoder{Categories: Categories, logger: logger}
}

// FeatureNames returns the column names of encoded vectors, in order.
func (e *Encoder) FeatureNames() []string {
	names := slices.Clone(numericFeatures)
	for _, c := range e.Categories[1:] {
		names = append(names, "type_"+c)
	}
	return names
}

// Encode returns the feature vector for t. An unknown type encodes as the
// reference level.
func (e *Encoder) Encode(t Transaction) []float64 {
	x := make([]float64, 0, len(numericFeatures)+len(e.Categories)-1)
	x = append(x,
		t.Amount,
		t.OldBalanceOrg,
		t.NewBalanceOrig,
		t.OldBalanceDest,
		t.NewBalanceDest,
		t.BalanceDeltaOrig,
		t.BalanceDeltaDest,
		boolFloat(t.EmptiedAccount),
	)
	typ := strings.ToUpper(strings.TrimSpace(t.Type))
	if !slices.Contains(e.Categories, typ) {
		e.logger.Debug("unknown transaction type, using reference encoding", "type", t.Type)
	}
	for _, c := range e.Categories[1:] {
		x = append(x, boolFloat(typ == c))
	}
	return x
}

// Matrix encodes a set of transactions and their labels.
func (e *Encoder) Matrix(txs []Transaction) ([][]float64, []int) {
	X := make([][]float64, len(txs))
	y := make([]int, len(txs))
	for i, t := range txs {
		X[i] = e.Encode(t)
		y[i] = t.Label()
	}
	return X, y
}

// ValidType reports whether typ is one of the known categories.
func ValidType(typ string) bool {
	return slices.Contains(Categories, strings.ToUpper(strings.TrimSpace(typ)))
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
