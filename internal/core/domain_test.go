package core

import "testing"

func TestTransactionInputValidate(t *testing.T) {
	good := TransactionInput{
		Title:    "Salary",
		Value:    Money{Cents: 300000},
		Type:     Income,
		Category: "Work",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		in   TransactionInput
		want error
	}{
		{"bad type", TransactionInput{Title: "a", Value: Money{Cents: 1}, Type: "transfer", Category: "c"}, ErrInvalidType},
		{"empty type", TransactionInput{Title: "a", Value: Money{Cents: 1}, Category: "c"}, ErrInvalidType},
		{"missing title", TransactionInput{Title: "  ", Value: Money{Cents: 1}, Type: Income, Category: "c"}, ErrMissingFields},
		{"missing category", TransactionInput{Title: "a", Value: Money{Cents: 1}, Type: Income, Category: ""}, ErrMissingFields},
		{"zero value", TransactionInput{Title: "a", Value: Money{}, Type: Income, Category: "c"}, ErrMissingFields},
		{"negative value", TransactionInput{Title: "a", Value: Money{Cents: -5}, Type: Outcome, Category: "c"}, ErrMissingFields},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.in.Validate(); err != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestBalanceAllows(t *testing.T) {
	// Worked example: income 100, outcome 30.
	b := Balance{
		Income:  Money{Cents: 10000},
		Outcome: Money{Cents: 3000},
		Total:   Money{Cents: 7000},
	}

	cases := []struct {
		name string
		in   TransactionInput
		want bool
	}{
		{"income always allowed", TransactionInput{Type: Income, Value: Money{Cents: 1000000}}, true},
		{"outcome within balance", TransactionInput{Type: Outcome, Value: Money{Cents: 5000}}, true},
		{"outcome exactly exhausting income", TransactionInput{Type: Outcome, Value: Money{Cents: 7000}}, true},
		{"outcome exceeding income", TransactionInput{Type: Outcome, Value: Money{Cents: 8000}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := b.Allows(tc.in); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestTransactionTypeValid(t *testing.T) {
	if !Income.Valid() || !Outcome.Valid() {
		t.Fatalf("income and outcome must be valid types")
	}
	if TransactionType("transfer").Valid() {
		t.Fatalf("unexpected valid type")
	}
}
