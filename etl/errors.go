package etl

import (
	"fmt"
	"strings"
)

// SchemaMismatchError reports required columns missing from the source header.
// It is fatal before any record is read; no pipeline run is created for it.
type SchemaMismatchError struct {
	Source  string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in %s: missing required columns [%s]",
		e.Source, strings.Join(e.Missing, ", "))
}
