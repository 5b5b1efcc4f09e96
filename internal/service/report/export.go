package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/nkiryanov/vendorpos/internal/models"
)

type Layout int

const (
	// Vendor's own sales, no vendor column
	LayoutVendor Layout = iota
	// All vendors, vendor name after the id
	LayoutAdmin
)

const (
	PrefixVendor = "sales_report"
	PrefixAdmin  = "general_report"

	TimestampLayout = "2006-01-02 15:04:05"
	UnknownVendor   = "Unknown"
)

func (l Layout) header() []string {
	switch l {
	case LayoutAdmin:
		return []string{"Transaction ID", "Vendor", "Type", "Detail", "Number", "Amount", "Date", "Status"}
	default:
		return []string{"Transaction ID", "Type", "Detail", "Number", "Amount", "Date", "Status"}
	}
}

func (l Layout) Prefix() string {
	if l == LayoutAdmin {
		return PrefixAdmin
	}
	return PrefixVendor
}

// Write header and one row per transaction in the given order.
// Timestamps are rendered in loc.
func Export(w io.Writer, transactions []models.Transaction, layout Layout, loc *time.Location) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(layout.header()); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}

	for _, t := range transactions {
		row := make([]string, 0, 8)
		row = append(row, t.ID)
		if layout == LayoutAdmin {
			vendor := t.VendorName
			if vendor == "" {
				vendor = UnknownVendor
			}
			row = append(row, vendor)
		}
		row = append(row,
			string(t.Type),
			t.Detail,
			t.Target,
			t.Amount.String(),
			t.ProcessedAt.In(loc).Format(TimestampLayout),
			string(t.Status),
		)

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv row %s: %w", t.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// <prefix>_<start>_<end>.csv, missing bound renders as 'all'
func ExportFilename(prefix string, p Period) string {
	orAll := func(s string) string {
		if s == "" {
			return "all"
		}
		return s
	}
	return fmt.Sprintf("%s_%s_%s.csv", prefix, orAll(p.Start), orAll(p.End))
}
