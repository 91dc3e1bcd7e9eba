package csvimport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/erp/bulkops/internal/domain/bulk"
)

// ParseJSON decodes an array of flat objects into raw records.
// Nested objects and arrays are dropped from the record with one warning per field name,
// so that exports with expanded relations can be imported back.
func ParseJSON(r io.Reader) ([]bulk.RawRecord, []string, error) {
	br, err := prepareInput(r)
	if err != nil {
		return nil, nil, err
	}

	var rows []map[string]json.RawMessage
	dec := json.NewDecoder(br)
	if err := dec.Decode(&rows); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, nil, ErrNotArray
		}
		return nil, nil, fmt.Errorf("failed to decode structured input: %w", err)
	}

	dropped := make(map[string]struct{})
	records := make([]bulk.RawRecord, 0, len(rows))
	for _, row := range rows {
		rec := make(bulk.RawRecord, len(row))
		for name, raw := range row {
			var v bulk.Value
			if err := json.Unmarshal(raw, &v); err != nil {
				if errors.Is(err, bulk.ErrNonScalar) {
					dropped[name] = struct{}{}
					continue
				}
				return nil, nil, fmt.Errorf("field %q: %w", name, err)
			}
			rec[name] = v
		}
		records = append(records, rec)
	}

	names := make([]string, 0, len(dropped))
	for name := range dropped {
		names = append(names, name)
	}
	sort.Strings(names)
	warnings := make([]string, 0, len(names))
	for _, name := range names {
		warnings = append(warnings, fmt.Sprintf("ignored non-scalar field %q", name))
	}
	return records, warnings, nil
}
