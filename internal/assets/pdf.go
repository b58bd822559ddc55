package assets

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/codefionn/hyphertext/internal/consts"
)

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// PDFExtractor reads PDF text with poppler's pdftotext.
type PDFExtractor struct {
	runner CommandRunner
	binary string
}

// NewPDFExtractor uses runner to invoke pdftotext. A nil runner runs the
// binary directly.
func NewPDFExtractor(runner CommandRunner) *PDFExtractor {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PDFExtractor{runner: runner, binary: "pdftotext"}
}

// WithBinary overrides the pdftotext executable. Empty keeps the default.
func (p *PDFExtractor) WithBinary(path string) *PDFExtractor {
	if path != "" {
		p.binary = path
	}
	return p
}

// Extract writes data to a temporary file because pdftotext needs a
// seekable input.
func (p *PDFExtractor) Extract(ctx context.Context, data []byte) (Extraction, error) {
	tmp, err := os.CreateTemp("", "hyphertext-*.pdf")
	if err != nil {
		return Extraction{}, fmt.Errorf("Could not open PDF: %v", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return Extraction{}, fmt.Errorf("Could not open PDF: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return Extraction{}, fmt.Errorf("Could not open PDF: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, consts.PDFExtractTimeout)
	defer cancel()
	out, err := p.runner.Run(ctx, p.binary, "-enc", "UTF-8", "-q", tmp.Name(), "-")
	if err != nil {
		return Extraction{}, fmt.Errorf("Could not open PDF: %v", err)
	}
	return PagesToExtraction(SplitPDFPages(string(out))), nil
}

// SplitPDFPages splits pdftotext output on the form feed that ends every
// page.
func SplitPDFPages(out string) []string {
	pages := strings.Split(out, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

// PagesToExtraction joins page texts under page headers, stopping at the
// extracted text limit.
func PagesToExtraction(pages []string) Extraction {
	var budget textBudget
	marker := fmt.Sprintf("\n\n[... content truncated at %d characters. Document has %d pages total.]",
		consts.MaxExtractedTextChars, len(pages))
	for i, page := range pages {
		text := strings.TrimSpace(page)
		if text == "" {
			continue
		}
		if !budget.add(fmt.Sprintf("\n\n--- Page %d ---\n%s", i+1, text), 100, marker) {
			break
		}
	}
	out := Extraction{PageCount: len(pages)}
	budget.finish(&out)
	return out
}
