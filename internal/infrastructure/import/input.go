package csvimport

import (
	"fmt"
	"io"

	"github.com/erp/bulkops/internal/domain/bulk"
)

// DecodeRecords reads an import payload in the given format. Records carry
// their origin row: the data row for delimited input, the array position for
// structured input. Spreadsheet payloads are expected as tab-separated text
// exported from the sheet.
func DecodeRecords(format bulk.Format, r io.Reader) ([]bulk.ImportRecord, []string, error) {
	switch format {
	case bulk.FormatCSV:
		p, err := NewCSVParser(r)
		if err != nil {
			return nil, nil, err
		}
		return p.ReadAll()
	case bulk.FormatSpreadsheet:
		p, err := NewCSVParser(r, WithDelimiter('\t'))
		if err != nil {
			return nil, nil, err
		}
		return p.ReadAll()
	case bulk.FormatJSON:
		raw, warnings, err := ParseJSON(r)
		if err != nil {
			return nil, nil, err
		}
		return bulk.TagRows(raw), warnings, nil
	}
	return nil, nil, fmt.Errorf("%w: %q cannot be imported", bulk.ErrUnknownFormat, format)
}
