// Package fraud holds the fraud classifier pipeline: snapshot cleaning in
// PostgreSQL, feature encoding, training, evaluation and scoring.
package fraud

// Transaction is one cleaned, feature-engineered payment.
type Transaction struct {
	Type           string  `json:"type"`
	Amount         float64 `json:"amount"`
	OldBalanceOrg  float64 `json:"oldbalanceOrg"`
	NewBalanceOrig float64 `json:"newbalanceOrig"`
	OldBalanceDest float64 `json:"oldbalanceDest"`
	NewBalanceDest float64 `json:"newbalanceDest"`
	IsFraud        bool    `json:"isFraud"`
	IsFlaggedFraud bool    `json:"isFlaggedFraud"`

	BalanceDeltaOrig float64 `json:"balance_delta_orig"`
	BalanceDeltaDest float64 `json:"balance_delta_dest"`
	EmptiedAccount   bool    `json:"emptied_account"`
}

// Engineer fills the derived fields from the balances, using the same
// rules as the cleaning SQL.
func (t *Transaction) Engineer() {
	t.BalanceDeltaOrig = t.NewBalanceOrig - t.OldBalanceOrg
	t.BalanceDeltaDest = t.NewBalanceDest - t.OldBalanceDest
	t.EmptiedAccount = t.NewBalanceOrig == 0 && t.OldBalanceOrg > 0
}

// Label returns the class index used by the classifier.
func (t Transaction) Label() int {
	if t.IsFraud {
		return 1
	}
	return 0
}

// FromInput builds a transaction from the three values a user enters when
// scoring: the whole amount leaves the origin account and lands in an
// empty destination.
func FromInput(typ string, amount, oldBalance float64) Transaction {
	t := Transaction{
		Type:           typ,
		Amount:         amount,
		OldBalanceOrg:  oldBalance,
		NewBalanceOrig: oldBalance - amount,
		OldBalanceDest: 0,
		NewBalanceDest: amount,
	}
	t.Engineer()
	return t
}
