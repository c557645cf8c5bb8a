package services

import "ledger/internal/core"

// ComputeBalance accumulates income and outcome totals over a set of
// transactions. An empty set yields a zero balance. Pure accumulation, no
// side effects; cost is linear in the number of transactions.
func ComputeBalance(transactions []core.Transaction) core.Balance {
	var b core.Balance
	for _, t := range transactions {
		switch t.Type {
		case core.Income:
			b.Income.Cents += t.Value.Cents
		case core.Outcome:
			b.Outcome.Cents += t.Value.Cents
		}
	}
	b.Total.Cents = b.Income.Cents - b.Outcome.Cents
	return b
}
