// Package export writes canonical records to CSV, JSON and XLSX files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/exp/slices"

	"github.com/masa-finance/unified-scraper/api/types"
)

type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatExcel Format = "excel"
)

// SheetName is the name of the only sheet in exported workbooks.
const SheetName = "Records"

const rawColumn = "provider_raw"

// PriorityColumns lead every tabular export, in this order.
var PriorityColumns = []string{
	"id", "source_target", "timestamp", "body_text",
	"views", "likes", "replies", "reshares", "canonical_url",
}

var extraColumns = []string{
	"provider", "author", "quotes", "bookmarks", "reactions",
	"media_urls", "is_reshare", "lang", rawColumn,
}

// Columns returns the priority columns followed by the remaining ones sorted by name.
func Columns(includeRaw bool) []string {
	extras := make([]string, 0, len(extraColumns))
	for _, c := range extraColumns {
		if c == rawColumn && !includeRaw {
			continue
		}
		extras = append(extras, c)
	}
	slices.Sort(extras)
	return append(slices.Clone(PriorityColumns), extras...)
}

func row(r types.CanonicalRecord) map[string]any {
	raw, err := json.Marshal(r.ProviderRaw)
	if err != nil {
		raw = []byte("{}")
	}
	return map[string]any{
		"id":            r.ID,
		"source_target": r.SourceTarget,
		"timestamp":     r.Timestamp,
		"body_text":     r.BodyText,
		"views":         r.Engagement.Views,
		"likes":         r.Engagement.Likes,
		"replies":       r.Engagement.Replies,
		"reshares":      r.Engagement.Reshares,
		"canonical_url": r.CanonicalURL,
		"provider":      string(r.Provider),
		"author":        r.Author,
		"quotes":        r.Engagement.Quotes,
		"bookmarks":     r.Engagement.Bookmarks,
		"reactions":     r.Engagement.Reactions,
		"media_urls":    strings.Join(r.MediaURLs, " | "),
		"is_reshare":    r.IsReshare,
		"lang":          r.Lang,
		rawColumn:       string(raw),
	}
}

func cellString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

// WriteCSV writes a UTF-8 CSV with a byte order mark so spreadsheet tools detect the encoding.
func WriteCSV(w io.Writer, records []types.CanonicalRecord) error {
	if _, err := io.WriteString(w, "\xEF\xBB\xBF"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cols := Columns(true)
	if err := cw.Write(cols); err != nil {
		return err
	}
	line := make([]string, len(cols))
	for _, r := range records {
		values := row(r)
		for i, c := range cols {
			line[i] = cellString(values[c])
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the records as an indented JSON array, provider payloads included.
func WriteJSON(w io.Writer, records []types.CanonicalRecord) error {
	if records == nil {
		records = []types.CanonicalRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(records)
}

// WriteXLSX writes a single-sheet workbook without the provider payload column.
func WriteXLSX(path string, records []types.CanonicalRecord) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	cols := Columns(false)
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	for i, r := range records {
		values := row(r)
		line := make([]any, len(cols))
		for j, c := range cols {
			line[j] = values[c]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &line); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

// ParseFormats accepts a single format, a comma separated list or "all".
// "xlsx" is accepted as an alias of excel.
func ParseFormats(s string) ([]Format, error) {
	out := []Format{}
	for _, part := range strings.Split(s, ",") {
		switch f := strings.ToLower(strings.TrimSpace(part)); f {
		case "":
			continue
		case "all":
			return []Format{FormatCSV, FormatJSON, FormatExcel}, nil
		case "csv", "json":
			out = appendFormat(out, Format(f))
		case "excel", "xlsx":
			out = appendFormat(out, FormatExcel)
		default:
			return nil, fmt.Errorf("unknown output format %q", part)
		}
	}
	if len(out) == 0 {
		return []Format{FormatCSV}, nil
	}
	return out, nil
}

func appendFormat(formats []Format, f Format) []Format {
	if slices.Contains(formats, f) {
		return formats
	}
	return append(formats, f)
}

func (f Format) ext() string {
	if f == FormatExcel {
		return "xlsx"
	}
	return string(f)
}

// FileName is {prefix}_{YYYYmmdd_HHMMSS}.{ext}.
func FileName(prefix string, now time.Time, f Format) string {
	return fmt.Sprintf("%s_%s.%s", prefix, now.Format("20060102_150405"), f.ext())
}

// Save writes records in every requested format under dir and returns the written paths.
// Nothing is written when there are no records.
func Save(records []types.CanonicalRecord, dir, formats, prefix string, now time.Time) ([]string, error) {
	fs, err := ParseFormats(formats)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		logrus.Warn("No records to save")
		return nil, nil
	}
	if prefix == "" {
		prefix = "records"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	paths := []string{}
	for _, f := range fs {
		path := filepath.Join(dir, FileName(prefix, now, f))
		if err := saveOne(path, f, records); err != nil {
			return paths, fmt.Errorf("writing %s: %w", path, err)
		}
		logrus.Infof("Saved %s: %s", strings.ToUpper(string(f)), path)
		paths = append(paths, path)
	}
	return paths, nil
}

func saveOne(path string, f Format, records []types.CanonicalRecord) error {
	if f == FormatExcel {
		return WriteXLSX(path, records)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	if f == FormatCSV {
		err = WriteCSV(out, records)
	} else {
		err = WriteJSON(out, records)
	}
	if err != nil {
		return err
	}
	return out.Close()
}
