package exportapp

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// DocumentRenderer converts an HTML page into a printable document.
type DocumentRenderer interface {
	RenderPDF(ctx context.Context, html []byte) ([]byte, error)
}

// ErrNoRenderer is returned when a document export has no renderer configured.
var ErrNoRenderer = errors.New("no document renderer configured")

// encodeCSV writes rows as delimited text. Relations are never written.
func encodeCSV(rows []row) ([]byte, error) {
	header, index := unionHeader(rows)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	line := make([]string, len(header))
	for _, r := range rows {
		clear(line)
		for _, c := range r.columns {
			line[index[c.name]] = c.value.Text()
		}
		if err := w.Write(line); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// unionHeader collects scalar column names in first-seen order.
func unionHeader(rows []row) ([]string, map[string]int) {
	var header []string
	index := make(map[string]int)
	for _, r := range rows {
		for _, c := range r.columns {
			if _, ok := index[c.name]; !ok {
				index[c.name] = len(header)
				header = append(header, c.name)
			}
		}
	}
	return header, index
}

// encodeJSON writes rows as an indented array, relations included.
func encodeJSON(rows []row) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if rows == nil {
		rows = []row{}
	}
	if err := enc.Encode(rows); err != nil {
		return nil, fmt.Errorf("write json: %w", err)
	}
	return buf.Bytes(), nil
}

var documentTemplate = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; font-size: 10px; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #999; padding: 2px 4px; text-align: left; }
th { background: #eee; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<table>
<thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody>
</table>
</body>
</html>
`))

// documentHTML lays rows out as one HTML table, one column per header name.
func documentHTML(title string, rows []row) ([]byte, error) {
	header, index := unionHeader(rows)
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = make([]string, len(header))
		for _, c := range r.columns {
			cells[i][index[c.name]] = c.value.Text()
		}
	}

	var buf bytes.Buffer
	err := documentTemplate.Execute(&buf, struct {
		Title  string
		Header []string
		Rows   [][]string
	}{title, header, cells})
	if err != nil {
		return nil, fmt.Errorf("render document html: %w", err)
	}
	return buf.Bytes(), nil
}

// encoded is a serialized payload and the format it is actually in.
type encoded struct {
	data     []byte
	format   bulk.Format
	degraded bool
}

// serialize encodes rows in the requested format. Spreadsheets degrade to
// delimited text; documents degrade to structured text when no renderer works.
func (p *ExportPipeline) serialize(ctx context.Context, title string, format bulk.Format, rows []row) (encoded, error) {
	switch format {
	case bulk.FormatCSV:
		data, err := encodeCSV(rows)
		return encoded{data: data, format: bulk.FormatCSV}, err
	case bulk.FormatJSON:
		data, err := encodeJSON(rows)
		return encoded{data: data, format: bulk.FormatJSON}, err
	case bulk.FormatSpreadsheet:
		data, err := encodeCSV(rows)
		return encoded{data: data, format: bulk.FormatCSV, degraded: true}, err
	case bulk.FormatDocument:
		data, err := p.renderDocument(ctx, title, rows)
		if err == nil {
			return encoded{data: data, format: bulk.FormatDocument}, nil
		}
		logger.L(ctx).Warn("Document export degraded to structured text", zap.Error(err))
		data, err = encodeJSON(rows)
		return encoded{data: data, format: bulk.FormatJSON, degraded: true}, err
	}
	return encoded{}, fmt.Errorf("%w: %q", bulk.ErrUnknownFormat, format)
}

func (p *ExportPipeline) renderDocument(ctx context.Context, title string, rows []row) ([]byte, error) {
	if p.renderer == nil {
		return nil, ErrNoRenderer
	}
	page, err := documentHTML(title, rows)
	if err != nil {
		return nil, err
	}
	return p.renderer.RenderPDF(ctx, page)
}
