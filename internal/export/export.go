package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"leadhunt-engine/internal/domain"

	"github.com/xuri/excelize/v2"
)

// Header is the column layout of every session file.
var Header = []string{
	"Name", "Category", "Phone", "Email", "Website", "Address",
	"Priority", "Quality Score", "Data Source", "Search Term", "Timestamp",
}

// SessionFileName returns <dir>/<prefix>-<YYYY-MM-DDTHH-MM-SS.mmm>.<ext>.
func SessionFileName(dir, prefix string, t time.Time, ext string) string {
	if prefix == "" {
		prefix = "leads"
	}
	stamp := t.UTC().Format("2006-01-02T15-04-05.000")
	return filepath.Join(dir, fmt.Sprintf("%s-%s.%s", prefix, stamp, strings.TrimPrefix(ext, ".")))
}

// Row renders a lead in Header order. Absent contact fields are empty.
func Row(l domain.Lead) []string {
	return []string{
		l.Name,
		l.Category,
		l.Phone.Or(""),
		l.Email.Or(""),
		l.Website.Or(""),
		l.Address,
		l.Priority.String(),
		strconv.Itoa(l.QualityScore),
		l.Source,
		l.SearchTerm,
		l.TimestampString(),
	}
}

func WriteCSV(w io.Writer, leads []domain.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, l := range leads {
		if err := cw.Write(Row(l)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes leads to path through a temp file so a crash never
// leaves a half-written session file behind.
func WriteCSVFile(path string, leads []domain.Lead) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, leads); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadCSV parses a session file back into leads. Columns are matched by
// header name, so reordered files still load.
func ReadCSV(r io.Reader) ([]domain.Lead, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range head {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := idx["Name"]; !ok {
		return nil, fmt.Errorf("read header: no Name column")
	}

	var out []domain.Lead
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return out, fmt.Errorf("line %d: %w", line, err)
		}
		get := func(col string) string {
			if i, ok := idx[col]; ok && i < len(rec) {
				return rec[i]
			}
			return ""
		}
		l, err := parseRow(get)
		if err != nil {
			return out, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func parseRow(get func(string) string) (domain.Lead, error) {
	l := domain.Lead{
		Name:       get("Name"),
		Category:   get("Category"),
		Phone:      opt(get("Phone")),
		Email:      opt(get("Email")),
		Website:    opt(get("Website")),
		Address:    get("Address"),
		Source:     get("Data Source"),
		SearchTerm: get("Search Term"),
	}
	var err error
	if l.Priority, err = domain.ParsePriority(get("Priority")); err != nil {
		return l, err
	}
	if l.QualityScore, err = strconv.Atoi(strings.TrimSpace(get("Quality Score"))); err != nil {
		return l, fmt.Errorf("quality score: %w", err)
	}
	if ts := get("Timestamp"); ts != "" {
		if l.CapturedAt, err = time.Parse(domain.TimestampLayout, ts); err != nil {
			return l, fmt.Errorf("timestamp: %w", err)
		}
	}
	return l, nil
}

func opt(v string) domain.Opt {
	if v == "" {
		return domain.None()
	}
	return domain.Some(v)
}

func ReadCSVFile(path string) ([]domain.Lead, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// WriteXLSX writes the same table as WriteCSV into a single-sheet workbook.
func WriteXLSX(path string, leads []domain.Lead) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, l := range leads {
		for c, v := range Row(l) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			var val any = v
			if Header[c] == "Quality Score" {
				val = l.QualityScore
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}
	widths := []float64{36, 24, 20, 30, 36, 40, 10, 8, 22, 28, 26}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, w)
	}
	return f.SaveAs(path)
}
