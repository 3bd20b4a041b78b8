package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"finance_tracker/internal/domain"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
)

const (
	PDFFilename    = "financial-report.pdf"
	PDFContentType = "application/pdf"

	maxPDFRows = 2000
)

// Statement is what a PDF export renders.
type Statement struct {
	Title        string
	From, To     string
	Transactions []*domain.Transaction
	GeneratedAt  time.Time
}

// Totals sums income and expense over txs.
func Totals(txs []*domain.Transaction) domain.FinancialSummary {
	income := domain.Aggregate{Sum: decimal.Zero}
	expense := domain.Aggregate{Sum: decimal.Zero}
	for _, tx := range txs {
		switch tx.Type {
		case domain.TransactionIncome:
			income.Sum = income.Sum.Add(tx.Amount)
			income.Count++
		case domain.TransactionExpense:
			expense.Sum = expense.Sum.Add(tx.Amount)
			expense.Count++
		}
	}
	return domain.NewFinancialSummary(income, expense)
}

var pdfColumns = []struct {
	title string
	width float64
	align string
}{
	{"TYPE", 24, "C"},
	{"DATE", 26, "C"},
	{"CONCEPT", 70, "L"},
	{"AMOUNT", 30, "R"},
	{"USER", 32, "L"},
}

// WritePDF renders st as an A4 statement: period, totals and one table row
// per transaction.
func WritePDF(w io.Writer, st Statement) error {
	title := st.Title
	if title == "" {
		title = "Financial Report"
	}
	period := "All dates"
	if st.From != "" || st.To != "" {
		period = "Period: " + orDash(st.From) + " to " + orDash(st.To)
	}
	generated := st.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetTitle(title, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(20, 20, 20)
	pdf.Cell(0, 10, title)
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, period)
	pdf.Ln(10)

	totals := Totals(st.Transactions)
	sumW := []float64{60, 60, 62}
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(sumW[0], 10, "Income", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[1], 10, "Expense", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[2], 10, "Balance", "1", 1, "C", true, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(sumW[0], 10, totals.TotalIncome.StringFixed(2), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[1], 10, totals.TotalExpense.StringFixed(2), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[2], 10, totals.Balance.StringFixed(2), "1", 1, "C", false, 0, "")
	pdf.Ln(6)

	tableHeader(pdf)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(30, 30, 30)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for i, tx := range st.Transactions {
		if i >= maxPDFRows {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(0, 8, fmt.Sprintf("%d more rows not shown", len(st.Transactions)-maxPDFRows), "1", 1, "C", false, 0, "")
			break
		}
		if pdf.GetY() > 270 {
			pdf.AddPage()
			tableHeader(pdf)
			pdf.SetFont("Helvetica", "", 9)
		}
		cells := []string{
			string(tx.Type),
			domain.FormatDate(tx.Date),
			tr(trimTo(tx.Concept, 48)),
			tx.Amount.StringFixed(2),
			tr(trimTo(ownerName(tx), 20)),
		}
		for j, col := range pdfColumns {
			ln := 0
			if j == len(pdfColumns)-1 {
				ln = 1
			}
			pdf.CellFormat(col.width, 8, cells[j], "1", ln, col.align, false, 0, "")
		}
	}

	pdf.SetY(-18)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 10, "Generated "+generated.UTC().Format(time.RFC3339), "", 0, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func tableHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetTextColor(20, 20, 20)
	for i, col := range pdfColumns {
		ln := 0
		if i == len(pdfColumns)-1 {
			ln = 1
		}
		pdf.CellFormat(col.width, 8, col.title, "1", ln, "C", true, 0, "")
	}
}

func trimTo(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
