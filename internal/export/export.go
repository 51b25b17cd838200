// Package export writes the spreadsheet's tables to a local Excel workbook.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/esathiyasekhar/FinanceTracker/internal/parse"
	"github.com/esathiyasekhar/FinanceTracker/internal/repository"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Loader reads the tables to export.
type Loader interface {
	Load(ctx context.Context, table schema.Table) (*repository.Collection, error)
}

// Workbook builds a workbook with one sheet per table, in provisioning order.
// Plain numeric amount and integer cells are written as numbers; all other
// cells are written as text.
func Workbook(ctx context.Context, l Loader) (*excelize.File, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("Workbook: header style: %w", err)
	}

	for i, def := range schema.All() {
		c, err := l.Load(ctx, def.Table)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("Workbook: %w", err)
		}
		if err := writeSheet(f, def, c, header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("Workbook %s: %w", def.Table, err)
		}
		if i == 0 {
			idx, _ := f.GetSheetIndex(string(def.Table))
			f.SetActiveSheet(idx)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("Workbook: removing default sheet: %w", err)
	}
	return f, nil
}

func writeSheet(f *excelize.File, def schema.Definition, c *repository.Collection, headerStyle int) error {
	sheet := string(def.Table)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	head := make([]interface{}, len(c.Header))
	for i, h := range c.Header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return err
	}
	if len(c.Header) > 0 {
		last, err := excelize.ColumnNumberToName(len(c.Header))
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, "A", last, 14); err != nil {
			return err
		}
	}

	for i, r := range c.Records {
		row := make([]interface{}, len(c.Header))
		for j, col := range c.Header {
			row[j] = cellValue(def.Kind(col), r[col])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func cellValue(kind schema.Kind, v string) interface{} {
	switch kind {
	case schema.KindAmount:
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return d.InexactFloat64()
		}
	case schema.KindInt:
		if n, ok := parse.Int(v); ok {
			return n
		}
	}
	return v
}

// Write builds the workbook and writes it to w as .xlsx.
func Write(ctx context.Context, l Loader, w io.Writer) error {
	f, err := Workbook(ctx, l)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	return nil
}
