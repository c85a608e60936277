// Package csvimport reads password-manager CSV exports into incoming records.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/persistorai/credsync/internal/models"
)

// ErrNoKnownColumns means the header row names none of the credential fields.
var ErrNoKnownColumns = errors.New("csv header has no recognised credential columns")

// aliases maps lowercased header names to the field they carry. Covers the
// export formats of the common browser and password-manager vendors.
var aliases = map[string]models.Field{
	"name":           models.FieldName,
	"title":          models.FieldName,
	"url":            models.FieldURL,
	"login_uri":      models.FieldURL,
	"website":        models.FieldURL,
	"username":       models.FieldUsername,
	"login_username": models.FieldUsername,
	"login":          models.FieldUsername,
	"password":       models.FieldPassword,
	"login_password": models.FieldPassword,
	"note":           models.FieldNote,
	"notes":          models.FieldNote,
	"extra":          models.FieldNote,
}

// columns holds the column index of each field, or -1.
type columns [len(models.Fields)]int

func mapHeader(header []string) (columns, error) {
	var cols columns
	for i := range cols {
		cols[i] = -1
	}

	found := false
	for i, h := range header {
		f, ok := aliases[strings.ToLower(strings.TrimSpace(h))]
		if !ok || cols[f] >= 0 {
			continue
		}
		cols[f] = i
		found = true
	}

	if !found {
		return cols, ErrNoKnownColumns
	}

	return cols, nil
}

func (cols columns) record(row []string) models.IncomingRecord {
	get := func(f models.Field) string {
		if i := cols[f]; i >= 0 && i < len(row) {
			return row[i]
		}
		return ""
	}

	return models.IncomingRecord{
		Name:     get(models.FieldName),
		URL:      get(models.FieldURL),
		Username: get(models.FieldUsername),
		Password: get(models.FieldPassword),
		Note:     get(models.FieldNote),
	}
}

// Parse reads a CSV export with a header row. A UTF-8 or UTF-16 byte order
// mark is honoured. Rows with every credential field empty are skipped;
// unknown columns are ignored.
func Parse(r io.Reader) ([]models.IncomingRecord, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, models.ErrNoRecords
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var out []models.IncomingRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}

		rec := cols.record(row)
		err = rec.Validate()
		if errors.Is(err, models.ErrEmptyRecord) {
			continue
		}
		if err != nil {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if len(out) == models.MaxImportRecords {
			return nil, fmt.Errorf("%w: more than %d rows", models.ErrTooManyRecords, models.MaxImportRecords)
		}
		out = append(out, rec)
	}

	if len(out) == 0 {
		return nil, models.ErrNoRecords
	}

	return out, nil
}

// ParseFile opens path and parses it with Parse.
func ParseFile(path string) ([]models.IncomingRecord, error) {
	f, err := os.Open(path) //nolint:gosec // path is supplied by the CLI user.
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	recs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return recs, nil
}
