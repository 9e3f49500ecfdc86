// Package receipt renders the printable proof-of-completion for an order.
package receipt

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
)

const (
	// ContentType is the MIME type of rendered receipts.
	ContentType = "application/pdf"
	// Extension is the file extension used in archive keys.
	Extension = ".pdf"

	title      = "ORDER RECEIPT"
	statusLine = "Status: " + orders.StatusConcluded
	dateLayout = "02/01/2006, 15:04:05"
)

// ErrRender wraps every failure produced while building a document.
var ErrRender = errors.New("render receipt")

// Style selects how a line is drawn.
type Style int

// Layout styles.
const (
	StyleTitle Style = iota
	StyleHeader
	StyleLabel
	StyleItem
	StyleStatus
	StyleSpacer
)

// Line is one row of the receipt layout.
type Line struct {
	Style Style
	Text  string
}

// Key returns the archive key for an order's receipt.
func Key(orderID string) string {
	return "comprovantes/" + orderID + Extension
}

// Renderer builds PDF receipts. The zero value is not usable; call New.
type Renderer struct {
	loc      *time.Location
	compress bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLocation sets the time zone used for the date line.
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithCompression toggles PDF stream compression (on by default).
func WithCompression(on bool) Option {
	return func(r *Renderer) { r.compress = on }
}

// New returns a Renderer. Without WithLocation dates are printed in UTC.
func New(opts ...Option) *Renderer {
	r := &Renderer{loc: time.UTC, compress: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lines returns the receipt layout for o at time at.
func (r *Renderer) Lines(o *orders.Order, at time.Time) []Line {
	lines := []Line{
		{StyleTitle, title},
		{StyleSpacer, ""},
		{StyleHeader, "ID: " + o.ID},
		{StyleHeader, "Customer: " + o.Customer},
		{StyleHeader, "Table: " + string(o.Table)},
		{StyleSpacer, ""},
		{StyleLabel, "Items:"},
	}
	for i, item := range o.Items {
		lines = append(lines, Line{StyleItem, fmt.Sprintf("%d. %s", i+1, item)})
	}
	return append(lines,
		Line{StyleSpacer, ""},
		Line{StyleStatus, statusLine},
		Line{StyleStatus, "Date: " + at.In(r.loc).Format(dateLayout)},
	)
}

// Render draws the receipt and returns the complete PDF. Nothing is returned
// unless the whole document was produced.
func (r *Renderer) Render(o *orders.Order, at time.Time) ([]byte, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: nil order", ErrRender)
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(50, 50, 50)
	pdf.SetAutoPageBreak(true, 50)
	pdf.SetCompression(r.compress)
	pdf.SetCreationDate(at)
	pdf.SetModificationDate(at)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(title+" "+o.ID, true)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, line := range r.Lines(o, at) {
		switch line.Style {
		case StyleTitle:
			pdf.SetFont("Helvetica", "", 20)
			pdf.CellFormat(0, 24, tr(line.Text), "", 1, "C", false, 0, "")
		case StyleHeader, StyleStatus:
			pdf.SetFont("Helvetica", "", 14)
			pdf.CellFormat(0, 18, tr(line.Text), "", 1, "L", false, 0, "")
		case StyleLabel:
			pdf.SetFont("Helvetica", "U", 12)
			pdf.CellFormat(0, 16, tr(line.Text), "", 1, "L", false, 0, "")
		case StyleItem:
			pdf.SetFont("Helvetica", "", 12)
			pdf.MultiCell(0, 16, tr(line.Text), "", "L", false)
		case StyleSpacer:
			pdf.Ln(14)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}
