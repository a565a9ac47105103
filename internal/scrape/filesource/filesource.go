package filesource

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/types"
)

// Source replays raw scrape dumps from disk: a JSON array of objects,
// newline-delimited JSON, or CSV with a header row. Path may be a single
// file or a directory of them.
type Source struct {
	Path string
}

func New(path string) *Source { return &Source{Path: path} }

func (s *Source) Name() string { return "file" }

var termKeys = []string{"Search Term", "Query", "search_term"}

// Search returns the records whose search-term field matches term
// (case-insensitive). Records without a search term match every term, and
// an empty term returns everything.
func (s *Source) Search(ctx context.Context, term string) (types.SearchResult, error) {
	all, err := s.Load(ctx)
	if err != nil {
		return types.SearchResult{}, err
	}
	term = strings.TrimSpace(term)
	out := make([]domain.RawLead, 0, len(all))
	for _, r := range all {
		if term == "" || matchesTerm(r, term) {
			out = append(out, r)
		}
	}
	return types.SearchResult{Source: s.Name(), Records: out}, nil
}

func matchesTerm(r domain.RawLead, term string) bool {
	for _, k := range termKeys {
		for rk, v := range r {
			if strings.EqualFold(rk, k) && strings.TrimSpace(v) != "" {
				return strings.EqualFold(strings.TrimSpace(v), term)
			}
		}
	}
	return true
}

// Load reads every record under Path.
func (s *Source) Load(ctx context.Context) ([]domain.RawLead, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	var out []domain.RawLead
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		recs, err := ReadFile(f)
		if err != nil {
			log.Printf("[source:file] skip file=%q err=%v", f, err)
			continue
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (s *Source) files() ([]string, error) {
	st, err := os.Stat(s.Path)
	if err != nil {
		return nil, fmt.Errorf("source path: %w", err)
	}
	if !st.IsDir() {
		return []string{s.Path}, nil
	}
	entries, err := os.ReadDir(s.Path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".ndjson", ".jsonl", ".csv":
			files = append(files, filepath.Join(s.Path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile decodes one dump, picking the format from the extension (and,
// for .json, from the first non-space byte).
func ReadFile(path string) ([]domain.RawLead, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(bytes.NewReader(b))
	case ".ndjson", ".jsonl":
		return readNDJSON(bytes.NewReader(b))
	}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return readJSONArray(trimmed)
	}
	return readNDJSON(bytes.NewReader(b))
}

func readJSONArray(b []byte) ([]domain.RawLead, error) {
	var rows []map[string]any
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("decode json array: %w", err)
	}
	out := make([]domain.RawLead, 0, len(rows))
	for _, r := range rows {
		out = append(out, flatten(r))
	}
	return out, nil
}

func readNDJSON(r io.Reader) ([]domain.RawLead, error) {
	var out []domain.RawLead
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	line := 0
	for sc.Scan() {
		line++
		txt := strings.TrimSpace(sc.Text())
		if txt == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(txt), &m); err != nil {
			log.Printf("[source:file] bad json line=%d err=%v", line, err)
			continue
		}
		out = append(out, flatten(m))
	}
	return out, sc.Err()
}

// ReadCSV maps each row onto its header.
func ReadCSV(r io.Reader) ([]domain.RawLead, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var out []domain.RawLead
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("read csv: %w", err)
		}
		rec := domain.RawLead{}
		for i, v := range row {
			if i < len(header) && header[i] != "" {
				rec[header[i]] = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// flatten stringifies scalar JSON values; nested values are dropped.
func flatten(m map[string]any) domain.RawLead {
	out := make(domain.RawLead, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64, bool:
			out[k] = fmt.Sprint(t)
		case json.Number:
			out[k] = t.String()
		}
	}
	return out
}
