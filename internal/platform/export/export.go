// Package export renders clinic documents: treatment-plan quotes as plain
// text or spreadsheets, and the invoice ledger as a workbook.
package export

import (
	"context"
)

// Clinic is the header printed on every document.
type Clinic struct {
	Name    string
	Address string
	Phone   string
}

// QuoteLine is one pre-formatted row of a quote.
type QuoteLine struct {
	Tooth     string
	Procedure string
	Cost      string
}

// Quote is a fully formatted treatment-plan document. Renderers lay it out
// and never compute amounts.
type Quote struct {
	Clinic      Clinic
	Number      string
	Title       string
	Date        string
	Status      string
	PatientName string
	Lines       []QuoteLine
	Total       string
}

// Renderer turns a quote into a downloadable document.
type Renderer interface {
	Render(ctx context.Context, q *Quote) ([]byte, error)
	ContentType() string
	Extension() string
}
