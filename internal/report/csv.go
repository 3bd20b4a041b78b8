// Package report renders ledger listings as downloadable files.
package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"finance_tracker/internal/domain"
)

const (
	CSVFilename    = "financial-report.csv"
	CSVContentType = "text/csv"
)

var csvHeader = []string{"Type", "Amount", "Concept", "Date", "User"}

// WriteCSV writes one row per transaction in the given order. Free text is
// quoted by the standard CSV rules, so commas and quotes survive intact.
func WriteCSV(w io.Writer, txs []*domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, tx := range txs {
		if err := cw.Write(csvRecord(tx)); err != nil {
			return fmt.Errorf("write csv row %s: %w", tx.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRecord(tx *domain.Transaction) []string {
	return []string{
		string(tx.Type),
		tx.Amount.StringFixed(2),
		tx.Concept,
		domain.FormatDate(tx.Date),
		ownerName(tx),
	}
}

func ownerName(tx *domain.Transaction) string {
	if tx.User == nil {
		return ""
	}
	return tx.User.Name
}
