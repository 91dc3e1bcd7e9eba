package csvimport

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/erp/bulkops/internal/domain/bulk"
)

// CSVParser decodes delimited text into raw records keyed by header.
type CSVParser struct {
	delimiter  rune
	lazyQuotes bool
	trimSpace  bool
	headers    []string
	line       int
	reader     *csv.Reader
}

// ParserOption is a functional option for CSVParser configuration
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithLazyQuotes enables lazy quote handling
func WithLazyQuotes(lazy bool) ParserOption {
	return func(p *CSVParser) {
		p.lazyQuotes = lazy
	}
}

// WithTrimSpace enables trimming of leading/trailing spaces from fields
func WithTrimSpace(trim bool) ParserOption {
	return func(p *CSVParser) {
		p.trimSpace = trim
	}
}

// NewCSVParser creates a parser over r after stripping a UTF-8 BOM and checking the encoding.
func NewCSVParser(r io.Reader, opts ...ParserOption) (*CSVParser, error) {
	p := &CSVParser{
		delimiter:  ',',
		lazyQuotes: true,
		trimSpace:  true,
	}
	for _, opt := range opts {
		opt(p)
	}

	br, err := prepareInput(r)
	if err != nil {
		return nil, err
	}

	p.reader = csv.NewReader(br)
	p.reader.Comma = p.delimiter
	p.reader.LazyQuotes = p.lazyQuotes
	p.reader.TrimLeadingSpace = p.trimSpace
	p.reader.FieldsPerRecord = -1
	return p, nil
}

// prepareInput strips a UTF-8 BOM and validates the leading bytes are UTF-8.
func prepareInput(r io.Reader) (*bufio.Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	head, err := br.Peek(3)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = br.Discard(3)
	}

	const checkSize = 4096
	content, err := br.Peek(checkSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read input for encoding validation: %w", err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return nil, ErrEmptyFile
	}
	if !utf8.Valid(trimPartialRune(content)) {
		return nil, ErrInvalidEncoding
	}
	return br, nil
}

// trimPartialRune drops an incomplete trailing rune cut off by a peek window.
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size != 1 {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}

// ParseHeader reads the header row. Blank and duplicate names are rejected.
func (p *CSVParser) ParseHeader() error {
	record, err := p.reader.Read()
	if err == io.EOF {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	p.line = 1

	seen := make(map[string]struct{}, len(record))
	p.headers = make([]string, len(record))
	for i, h := range record {
		name := strings.TrimSpace(h)
		if name == "" {
			return fmt.Errorf("%w: column %d has no name", ErrMissingHeader, i+1)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateHeader, name)
		}
		seen[name] = struct{}{}
		p.headers[i] = name
	}
	return nil
}

// Headers returns the parsed header names
func (p *CSVParser) Headers() []string {
	return p.headers
}

// ReadRecord reads the next data row. Cells beyond the header are dropped and
// missing trailing cells are absent from the record. Values are always strings.
func (p *CSVParser) ReadRecord() (bulk.RawRecord, error) {
	cells, err := p.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	p.line++
	if err != nil {
		return nil, fmt.Errorf("error reading line %d: %w", p.line, err)
	}

	rec := make(bulk.RawRecord, len(p.headers))
	for i, header := range p.headers {
		if i >= len(cells) {
			break
		}
		value := cells[i]
		if !utf8.ValidString(value) {
			return nil, fmt.Errorf("%w: line %d, column %q", ErrInvalidEncoding, p.line, header)
		}
		if p.trimSpace {
			value = strings.TrimSpace(value)
		}
		rec[header] = bulk.StringValue(value)
	}
	return rec, nil
}

// ReadAll reads every data row, skipping rows whose cells are all empty.
// Each record keeps its 1-based data row, counted before blank rows are
// dropped, so errors point at the row in the file. The returned warnings
// describe skipped rows.
func (p *CSVParser) ReadAll() ([]bulk.ImportRecord, []string, error) {
	if p.headers == nil {
		if err := p.ParseHeader(); err != nil {
			return nil, nil, err
		}
	}

	var (
		records  []bulk.ImportRecord
		warnings []string
		blank    int
	)
	for {
		rec, err := p.ReadRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			return records, warnings, err
		}
		if isBlankRecord(rec) {
			blank++
			continue
		}
		records = append(records, bulk.ImportRecord{Row: p.line - 1, Raw: rec})
	}
	if blank > 0 {
		warnings = append(warnings, fmt.Sprintf("skipped %d empty row(s)", blank))
	}
	return records, warnings, nil
}

// Line returns the number of physical records read, header included.
func (p *CSVParser) Line() int {
	return p.line
}

func isBlankRecord(rec bulk.RawRecord) bool {
	for _, v := range rec {
		if !v.IsBlank() {
			return false
		}
	}
	return true
}
