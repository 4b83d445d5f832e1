package fs

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

// Definitions lists the file writers. Both pass their input through so a
// chain can continue after saving.
func Definitions() []plugin.Definition {
	return []plugin.Definition{
		{Type: "write_csv", Name: "Write CSV", Category: "Input/Output", Description: "Write the table to a CSV file", New: newWriteCSV},
		{Type: "write_excel", Name: "Write Excel", Category: "Input/Output", Description: "Write the table to an Excel worksheet", New: newWriteExcel},
	}
}

var savePath = model.FieldSpec{Key: "file_path", Label: "Output file path", Type: model.FieldFileSave, Required: true}

func ports(b *plugin.Base) {
	b.Declare([]model.PortSpec{model.In(model.PortData)}, []model.PortSpec{model.Out(model.PortData)})
}

func mkdirs(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

// WriteCSV writes the header and every row.
// Config:
// - file_path: string (required)
// - delimiter: "," ";" "\t" or "|" (default ",")
// - bom: bool, prefix a UTF-8 byte order mark so Excel detects the encoding (default true)
type WriteCSV struct{ *plugin.Base }

func newWriteCSV(b *plugin.Base) plugin.Step {
	ports(b)
	b.Describe(
		savePath,
		model.FieldSpec{Key: "delimiter", Label: "Delimiter", Type: model.FieldSelect, Default: ",", Options: []string{",", ";", `\t`, "|"}},
		model.FieldSpec{Key: "bom", Label: "Excel compatible (BOM)", Type: model.FieldCheckbox, Default: true},
	)
	return &WriteCSV{b}
}

func (n *WriteCSV) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	path := n.ParamString("file_path", "")
	if err := mkdirs(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if n.ParamBool("bom", true) {
		if _, err := f.WriteString("\ufeff"); err != nil {
			return nil, err
		}
	}
	w := csv.NewWriter(f)
	switch d := n.ParamString("delimiter", ","); d {
	case `\t`, "\t":
		w.Comma = '\t'
	case "":
	default:
		w.Comma = []rune(d)[0]
	}
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range rec {
			rec[i] = ""
			if i < len(row) {
				rec[i] = model.Text(row[i])
			}
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return model.Payloads{model.PortData: t}, nil
}

// WriteExcel writes the table to a new workbook. A missing .xlsx extension
// is appended.
// Config:
// - file_path: string (required)
// - sheet_name: string (default "Sheet1")
type WriteExcel struct{ *plugin.Base }

func newWriteExcel(b *plugin.Base) plugin.Step {
	ports(b)
	b.Describe(
		savePath,
		model.FieldSpec{Key: "sheet_name", Label: "Sheet name", Type: model.FieldText, Default: "Sheet1"},
	)
	return &WriteExcel{b}
}

func (n *WriteExcel) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	t, err := plugin.InputTable(in, model.PortData)
	if err != nil {
		return nil, err
	}
	path := n.ParamString("file_path", "")
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	sheet := n.ParamString("sheet_name", "Sheet1")
	if sheet == "" {
		sheet = "Sheet1"
	}

	wb := excelize.NewFile()
	defer wb.Close()
	if sheet != "Sheet1" {
		if err := wb.SetSheetName("Sheet1", sheet); err != nil {
			return nil, err
		}
	}
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for r, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		vals := append([]any(nil), row...)
		if err := wb.SetSheetRow(sheet, cell, &vals); err != nil {
			return nil, err
		}
	}
	if err := mkdirs(path); err != nil {
		return nil, err
	}
	if err := wb.SaveAs(path); err != nil {
		return nil, fmt.Errorf("save workbook: %w", err)
	}
	return model.Payloads{model.PortData: t}, nil
}
