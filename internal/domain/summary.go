package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type FinancialSummary struct {
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
	Balance      decimal.Decimal `json:"balance"`
	IncomeCount  int64           `json:"incomeCount"`
	ExpenseCount int64           `json:"expenseCount"`
}

// NewFinancialSummary derives the balance from the two aggregates.
func NewFinancialSummary(income Aggregate, expense Aggregate) FinancialSummary {
	return FinancialSummary{
		TotalIncome:  income.Sum,
		TotalExpense: expense.Sum,
		Balance:      income.Sum.Sub(expense.Sum),
		IncomeCount:  income.Count,
		ExpenseCount: expense.Count,
	}
}

// Aggregate is the sum and count of amount over a filtered row set.
type Aggregate struct {
	Sum   decimal.Decimal
	Count int64
}

type MonthlyStats struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// YearBounds returns the inclusive UTC range used for yearly statistics.
func YearBounds(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	return start, end
}

// BucketByMonth accumulates rows into twelve January..December entries.
// Rows outside the year still land in their UTC month; callers filter first.
func BucketByMonth(txs []*Transaction) []MonthlyStats {
	stats := make([]MonthlyStats, 12)
	for i := range stats {
		stats[i] = MonthlyStats{
			Month:   time.Month(i + 1).String(),
			Income:  decimal.Zero,
			Expense: decimal.Zero,
		}
	}

	for _, tx := range txs {
		idx := int(tx.Date.UTC().Month()) - 1
		switch tx.Type {
		case TransactionIncome:
			stats[idx].Income = stats[idx].Income.Add(tx.Amount)
		case TransactionExpense:
			stats[idx].Expense = stats[idx].Expense.Add(tx.Amount)
		}
	}

	for i := range stats {
		stats[i].Balance = stats[i].Income.Sub(stats[i].Expense)
	}
	return stats
}
