package render

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/erp/bulkops/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChromedpRenderer_Defaults(t *testing.T) {
	r := NewChromedpRenderer(config.RenderConfig{}, nil)
	defer r.Close()
	assert.Equal(t, defaultTimeout, r.timeout)

	r2 := NewChromedpRenderer(config.RenderConfig{Timeout: time.Second, NoSandbox: true}, nil)
	defer r2.Close()
	assert.Equal(t, time.Second, r2.timeout)
}

func TestPrintParams(t *testing.T) {
	p := printParams()
	assert.True(t, p.Landscape)
	assert.True(t, p.PrintBackground)
	assert.InDelta(t, 8.27, p.PaperWidth, 0.01)
	assert.InDelta(t, 11.69, p.PaperHeight, 0.01)
	assert.InDelta(t, 0.39, p.MarginTop, 0.01)
}

func TestRenderPDF_EmptyDocument(t *testing.T) {
	r := NewChromedpRenderer(config.RenderConfig{}, nil)
	defer r.Close()

	_, err := r.RenderPDF(context.Background(), "  \n")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestRenderPDF_UnreachableBrowser(t *testing.T) {
	r := NewChromedpRenderer(config.RenderConfig{
		RemoteURL: "ws://127.0.0.1:1/devtools/browser/none",
		Timeout:   2 * time.Second,
	}, nil)
	defer r.Close()

	_, err := r.RenderPDF(context.Background(), "<table><tr><td>x</td></tr></table>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render:")
}

// Runs only when a DevTools endpoint is provided, e.g.
// CHROME_REMOTE_URL=ws://localhost:9222 from a chromedp/headless-shell container.
func TestRenderPDF_RemoteChrome(t *testing.T) {
	url := os.Getenv("CHROME_REMOTE_URL")
	if url == "" {
		t.Skip("CHROME_REMOTE_URL not set")
	}
	r := NewChromedpRenderer(config.RenderConfig{RemoteURL: url}, nil)
	defer r.Close()

	pdf, err := r.RenderPDF(context.Background(), "<!DOCTYPE html><html><body><h1>people</h1></body></html>")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}
