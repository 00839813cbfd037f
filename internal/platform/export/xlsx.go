package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/360EntSecGroup-Skylar/excelize"
)

const (
	quoteSheet    = "Devis"
	invoiceSheet  = "Factures"
	paymentSheet  = "Paiements"
	defaultSheet  = "Sheet1"
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// quoteTableRow is the first row of line items in the quote sheet.
const quoteTableRow = 7

// XLSXRenderer produces the quote as a one-sheet workbook.
type XLSXRenderer struct{}

func (XLSXRenderer) ContentType() string { return xlsxMediaType }

func (XLSXRenderer) Extension() string { return "xlsx" }

func (XLSXRenderer) Render(_ context.Context, q *Quote) ([]byte, error) {
	f := newWorkbook(quoteSheet)

	f.SetCellValue(quoteSheet, "A1", q.Clinic.Name)
	f.SetCellValue(quoteSheet, "A2", q.Clinic.Address)
	f.SetCellValue(quoteSheet, "A3", q.Clinic.Phone)
	f.SetCellValue(quoteSheet, "A4", fmt.Sprintf("Devis %s du %s", q.Number, q.Date))
	f.SetCellValue(quoteSheet, "A5", q.Title)
	f.SetCellValue(quoteSheet, "C5", q.PatientName)

	header := quoteTableRow - 1
	f.SetCellValue(quoteSheet, cell("A", header), "Dent")
	f.SetCellValue(quoteSheet, cell("B", header), "Acte")
	f.SetCellValue(quoteSheet, cell("C", header), "Coût")
	for i, l := range q.Lines {
		row := quoteTableRow + i
		f.SetCellValue(quoteSheet, cell("A", row), l.Tooth)
		f.SetCellValue(quoteSheet, cell("B", row), l.Procedure)
		f.SetCellValue(quoteSheet, cell("C", row), l.Cost)
	}
	totalRow := QuoteTotalRow(len(q.Lines))
	f.SetCellValue(quoteSheet, cell("B", totalRow), "Total")
	f.SetCellValue(quoteSheet, cell("C", totalRow), q.Total)
	f.SetColWidth(quoteSheet, "A", "A", 14)
	f.SetColWidth(quoteSheet, "B", "B", 40)
	f.SetColWidth(quoteSheet, "C", "C", 18)

	return writeWorkbook(f)
}

// QuoteTotalRow is the spreadsheet row holding the grand total for a quote
// with n line items.
func QuoteTotalRow(n int) int {
	return quoteTableRow + n + 1
}

// InvoiceRow is one line of the ledger workbook.
type InvoiceRow struct {
	Number      string
	Date        string
	Patient     string
	Description string
	Status      string
	Amount      float64
	Paid        float64
	Remaining   float64
}

// PaymentRow is one line of the payments sheet.
type PaymentRow struct {
	Invoice string
	PaidAt  string
	Method  string
	Amount  float64
	Note    string
}

// LedgerWorkbook writes invoices and payments on two sheets.
func LedgerWorkbook(invoices []InvoiceRow, payments []PaymentRow) ([]byte, error) {
	f := newWorkbook(invoiceSheet)

	headers := map[string]string{
		"A1": "Facture", "B1": "Date", "C1": "Patient", "D1": "Description",
		"E1": "Statut", "F1": "Montant", "G1": "Payé", "H1": "Reste",
	}
	for k, v := range headers {
		f.SetCellValue(invoiceSheet, k, v)
	}
	for i, r := range invoices {
		row := i + 2
		f.SetCellValue(invoiceSheet, cell("A", row), r.Number)
		f.SetCellValue(invoiceSheet, cell("B", row), r.Date)
		f.SetCellValue(invoiceSheet, cell("C", row), r.Patient)
		f.SetCellValue(invoiceSheet, cell("D", row), r.Description)
		f.SetCellValue(invoiceSheet, cell("E", row), r.Status)
		f.SetCellValue(invoiceSheet, cell("F", row), r.Amount)
		f.SetCellValue(invoiceSheet, cell("G", row), r.Paid)
		f.SetCellValue(invoiceSheet, cell("H", row), r.Remaining)
	}

	f.NewSheet(paymentSheet)
	for k, v := range map[string]string{"A1": "Facture", "B1": "Date", "C1": "Mode", "D1": "Montant", "E1": "Note"} {
		f.SetCellValue(paymentSheet, k, v)
	}
	for i, p := range payments {
		row := i + 2
		f.SetCellValue(paymentSheet, cell("A", row), p.Invoice)
		f.SetCellValue(paymentSheet, cell("B", row), p.PaidAt)
		f.SetCellValue(paymentSheet, cell("C", row), p.Method)
		f.SetCellValue(paymentSheet, cell("D", row), p.Amount)
		f.SetCellValue(paymentSheet, cell("E", row), p.Note)
	}

	return writeWorkbook(f)
}

func newWorkbook(sheet string) *excelize.File {
	f := excelize.NewFile()
	f.NewSheet(sheet)
	f.DeleteSheet(defaultSheet)
	f.SetActiveSheet(f.GetSheetIndex(sheet))
	return f
}

func writeWorkbook(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
