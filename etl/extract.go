package etl

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// RequiredColumns must all be present in the source header before any record
// is yielded. Field-level semantics are not validated here; malformed values
// pass through so the raw-record count stays well defined.
var RequiredColumns = []string{
	"id",
	"loan_amnt",
	"int_rate",
	"term",
	"grade",
	"issue_d",
	"loan_status",
	"annual_inc",
}

// RawRecord is one unparsed source row: the 1-based data line number and the
// header-keyed field values as read from the file.
type RawRecord struct {
	Line   int
	Fields map[string]string
}

// Extractor reads raw loan records from a delimited file as a lazy,
// non-restartable sequence. An optional sample size caps the number of rows
// emitted; truncation is silent and visible only in the final row count.
type Extractor struct {
	source     string
	file       *os.File
	reader     *csv.Reader
	headers    []string
	sampleSize int
	emitted    int
	skipped    int
}

// OpenExtractor opens the source file and validates the header. It fails with
// SchemaMismatchError when required columns are absent, before yielding any
// record. sampleSize <= 0 means no limit.
func OpenExtractor(path string, sampleSize int) (*Extractor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file %s: %w", path, err)
	}

	reader := csv.NewReader(file)
	// Rows with mismatched column counts are padded or truncated, not dropped.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		file.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("source file %s is empty: no header row", path)
		}
		return nil, fmt.Errorf("failed to read header row of %s: %w", path, err)
	}

	for i, h := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}

	var missing []string
	for _, col := range RequiredColumns {
		found := false
		for _, h := range headers {
			if h == col {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		file.Close()
		return nil, &SchemaMismatchError{Source: filepath.Base(path), Missing: missing}
	}

	log.WithFields(log.Fields{
		"source":     filepath.Base(path),
		"columns":    len(headers),
		"sampleSize": sampleSize,
	}).Info("Source file opened")

	return &Extractor{
		source:     path,
		file:       file,
		reader:     reader,
		headers:    headers,
		sampleSize: sampleSize,
	}, nil
}

// Source returns the path this extractor reads from.
func (e *Extractor) Source() string {
	return e.source
}

// Next returns the next raw record, or io.EOF once the source is exhausted or
// the sample limit is reached. Rows the csv reader cannot parse at all are
// skipped with a warning; rows with the wrong column count are padded or
// truncated to the header width.
func (e *Extractor) Next() (RawRecord, error) {
	if e.sampleSize > 0 && e.emitted >= e.sampleSize {
		return RawRecord{}, io.EOF
	}

	for {
		row, err := e.reader.Read()
		if errors.Is(err, io.EOF) {
			return RawRecord{}, io.EOF
		}
		if err != nil {
			e.skipped++
			log.WithFields(log.Fields{
				"source": filepath.Base(e.source),
				"error":  err,
			}).Warn("Skipping unreadable row")
			continue
		}

		if len(row) < len(e.headers) {
			padded := make([]string, len(e.headers))
			copy(padded, row)
			row = padded
		} else if len(row) > len(e.headers) {
			row = row[:len(e.headers)]
		}

		fields := make(map[string]string, len(e.headers))
		for i, h := range e.headers {
			fields[h] = row[i]
		}

		e.emitted++
		return RawRecord{Line: e.emitted, Fields: fields}, nil
	}
}

// Emitted returns the number of records yielded so far.
func (e *Extractor) Emitted() int {
	return e.emitted
}

// Close releases the underlying file. The extractor cannot be reused.
func (e *Extractor) Close() error {
	if e.skipped > 0 {
		log.WithFields(log.Fields{
			"source":  filepath.Base(e.source),
			"skipped": e.skipped,
		}).Warn("Some rows could not be read")
	}
	return e.file.Close()
}
