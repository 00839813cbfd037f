package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
)

// TextRenderer produces a printable plain-text quote.
type TextRenderer struct{}

func (TextRenderer) ContentType() string { return "text/plain; charset=utf-8" }

func (TextRenderer) Extension() string { return "txt" }

func (TextRenderer) Render(_ context.Context, q *Quote) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, q.Clinic.Name)
	if q.Clinic.Address != "" {
		fmt.Fprintln(&buf, q.Clinic.Address)
	}
	if q.Clinic.Phone != "" {
		fmt.Fprintf(&buf, "Tél : %s\n", q.Clinic.Phone)
	}
	fmt.Fprintln(&buf, strings.Repeat("=", 60))
	fmt.Fprintf(&buf, "Devis %s du %s\n", q.Number, q.Date)
	fmt.Fprintln(&buf, q.Title)
	if q.PatientName != "" {
		fmt.Fprintf(&buf, "Patient : %s\n", q.PatientName)
	}
	if q.Status != "" {
		fmt.Fprintf(&buf, "Statut : %s\n", q.Status)
	}
	fmt.Fprintln(&buf)

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Dent\tActe\tCoût\t")
	for _, l := range q.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", l.Tooth, l.Procedure, l.Cost)
	}
	if err := tw.Flush(); err != nil {
		return nil, fmt.Errorf("render quote table: %w", err)
	}

	fmt.Fprintln(&buf, strings.Repeat("-", 60))
	fmt.Fprintf(&buf, "Total : %s\n", q.Total)
	return buf.Bytes(), nil
}
