package handlers

import (
	"bytes"
	"net/http"
	"strings"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/http/middleware"
	"finance_tracker/internal/report"

	"github.com/gin-gonic/gin"
)

// Export streams the filtered ledger as a CSV (default) or PDF attachment.
func (h *Handler) Export(c *gin.Context) {
	var raw domain.RawFilter
	if err := c.ShouldBindQuery(&raw); err != nil {
		badRequest(c, "bad query")
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	if format != "csv" && format != "pdf" {
		writeError(c, domain.Invalid("format", "must be csv or pdf"))
		return
	}

	txs, err := h.Ledger.ExportTransactions(c.Request.Context(), middleware.IdentityFrom(c), raw)
	if err != nil {
		writeError(c, err)
		return
	}

	var (
		buf         bytes.Buffer
		filename    string
		contentType string
	)
	switch format {
	case "pdf":
		err = report.WritePDF(&buf, report.Statement{
			From:         raw.StartDate,
			To:           raw.EndDate,
			Transactions: txs,
			GeneratedAt:  h.now(),
		})
		filename, contentType = report.PDFFilename, report.PDFContentType
	default:
		err = report.WriteCSV(&buf, txs)
		filename, contentType = report.CSVFilename, report.CSVContentType
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
