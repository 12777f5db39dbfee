// Package export writes a Report to disk. Exporting is the only way
// any result survives the run.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"subaudit/internal/engine"
)

var csvHeader = []string{"service", "category", "amount", "currency", "frequency", "last_charged", "status"}

// WriteCSV renders one row per entity in merchant-key order.
func WriteCSV(w io.Writer, r *engine.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range r.Entities {
		amount, currency := "", ""
		if e.CurrentAmount != nil {
			amount = e.CurrentAmount.Value.StringFixed(2)
			currency = e.CurrentAmount.Currency
		}
		row := []string{
			e.ServiceName,
			string(e.Category),
			amount,
			currency,
			string(e.Frequency),
			e.LastSeenAt.Format("2006-01-02"),
			string(e.Status),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row for %s: %w", e.ServiceName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToFile writes the CSV export to path.
func ToFile(path string, r *engine.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()
	if err := WriteCSV(f, r); err != nil {
		return err
	}
	return f.Close()
}
