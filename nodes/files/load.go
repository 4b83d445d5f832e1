package files

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
	"github.com/chwongs96-beep/excel-workflow-tool/plugin"
)

const Category = "Input/Output"

// Definitions lists the file readers.
func Definitions() []plugin.Definition {
	return []plugin.Definition{
		{Type: "read_csv", Name: "Read CSV", Category: Category, Description: "Read a table from a CSV file", New: newReadCSV},
		{Type: "read_excel", Name: "Read Excel", Category: Category, Description: "Read a table from an Excel worksheet", New: newReadExcel},
		{Type: "list_sheets", Name: "List Sheets", Category: Category, Description: "List the worksheets of an Excel workbook", New: newListSheets},
	}
}

var (
	filePath  = model.FieldSpec{Key: "file_path", Label: "File path", Type: model.FieldFile, Required: true}
	headerRow = model.FieldSpec{Key: "header_row", Label: "Header row", Type: model.FieldNumber, Default: 0.0}
)

// source is shared by steps that read an existing file.
type source struct{ *plugin.Base }

func (s *source) Validate() error {
	if err := s.ValidateSchema(); err != nil {
		return err
	}
	path := s.ParamString("file_path", "")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	return nil
}

// ReadCSV parses a delimited text file. Cells that spell numbers become
// numbers and empty cells are missing.
// Config:
// - file_path: string (required)
// - delimiter: "," ";" "\t" or "|" (default ",")
// - header_row: number of the row holding column names (default 0)
// - encoding: utf-8, utf-16, gbk, latin1 or cp1252 (default utf-8)
type ReadCSV struct{ source }

func newReadCSV(b *plugin.Base) plugin.Step {
	b.Declare(nil, []model.PortSpec{model.Out(model.PortData)})
	b.Describe(
		filePath,
		model.FieldSpec{Key: "delimiter", Label: "Delimiter", Type: model.FieldSelect, Default: ",", Options: []string{",", ";", `\t`, "|"}},
		headerRow,
		model.FieldSpec{Key: "encoding", Label: "Encoding", Type: model.FieldSelect, Default: "utf-8", Options: Encodings},
	)
	return &ReadCSV{source{b}}
}

// Encodings lists the text encodings read_csv accepts.
var Encodings = []string{"utf-8", "utf-16", "gbk", "latin1", "cp1252"}

// Decoder wraps r so it yields UTF-8 text from the named encoding.
func Decoder(r io.Reader, name string) (io.Reader, error) {
	var enc encoding.Encoding
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return r, nil
	case "utf-16", "utf16":
		enc = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "gbk", "gb2312":
		enc = simplifiedchinese.GBK
	case "latin1", "iso-8859-1":
		enc = charmap.ISO8859_1
	case "cp1252", "windows-1252":
		enc = charmap.Windows1252
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", name)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func (n *ReadCSV) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	f, err := os.Open(n.ParamString("file_path", ""))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	text, err := Decoder(f, n.ParamString("encoding", "utf-8"))
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(text)
	r.Comma = delimiter(n.ParamString("delimiter", ","))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return model.Payloads{model.PortData: FromRecords(records, n.ParamInt("header_row", 0))}, nil
}

func delimiter(s string) rune {
	switch s {
	case `\t`, "\t", "tab":
		return '\t'
	case "":
		return ','
	}
	return []rune(s)[0]
}

// ReadExcel reads one worksheet of a workbook.
// Config:
// - file_path: string (required)
// - sheet_name: string (default: first sheet)
// - header_row: number (default 0)
type ReadExcel struct{ source }

func newReadExcel(b *plugin.Base) plugin.Step {
	b.Declare(nil, []model.PortSpec{model.Out(model.PortData)})
	b.Describe(
		filePath,
		model.FieldSpec{Key: "sheet_name", Label: "Sheet name", Type: model.FieldText, Placeholder: "first sheet when empty"},
		headerRow,
	)
	return &ReadExcel{source{b}}
}

func (n *ReadExcel) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	wb, err := excelize.OpenFile(n.ParamString("file_path", ""))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheet := n.ParamString("sheet_name", "")
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	return model.Payloads{model.PortData: FromRecords(rows, n.ParamInt("header_row", 0))}, nil
}

// ListSheets reports the worksheet names of a workbook, both as a list and
// as a table of index and name.
type ListSheets struct{ source }

func newListSheets(b *plugin.Base) plugin.Step {
	b.Declare(nil, []model.PortSpec{
		{Name: "sheet_names", Kind: model.KindValue},
		model.Out(model.PortData),
	})
	b.Describe(filePath)
	return &ListSheets{source{b}}
}

func (n *ListSheets) Execute(ctx context.Context, in model.Payloads) (model.Payloads, error) {
	wb, err := excelize.OpenFile(n.ParamString("file_path", ""))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	names := wb.GetSheetList()
	t := model.NewTable("Sheet Index", "Sheet Name")
	for i, name := range names {
		t.AddRow(float64(i), name)
	}
	return model.Payloads{"sheet_names": names, model.PortData: t}, nil
}

// FromRecords builds a table from raw text rows. Row header names the
// columns; rows above it are skipped. Blank column names become
// "Unnamed: <i>".
func FromRecords(records [][]string, header int) *model.Table {
	if header < 0 {
		header = 0
	}
	if header >= len(records) {
		return model.NewTable()
	}
	width := 0
	for _, r := range records[header:] {
		if len(r) > width {
			width = len(r)
		}
	}
	cols := make([]string, width)
	for i := range cols {
		if i < len(records[header]) {
			cols[i] = strings.TrimSpace(records[header][i])
		}
		if cols[i] == "" {
			cols[i] = fmt.Sprintf("Unnamed: %d", i)
		}
	}
	t := model.NewTable(cols...)
	for _, rec := range records[header+1:] {
		row := make([]any, len(rec))
		for i, cell := range rec {
			if cell == "" {
				continue
			}
			row[i] = model.Parse(cell)
		}
		t.AddRow(row...)
	}
	return t
}
