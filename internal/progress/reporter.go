// Package progress reports corpus ingestion progress, as a terminal bar or
// as plain lines when running under CI.
package progress

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives ingestion progress, one document at a time.
type Reporter interface {
	// Start announces how many documents will be processed.
	Start(totalDocs int)
	// Document reports one processed document and how many handbook
	// sections it split into.
	Document(current int, path string, sections int)
	// Finish reports the total number of sections collected.
	Finish(totalSections int)
}

// NewReporter picks a CI-friendly reporter when the CI environment variable
// is set, and an interactive bar otherwise.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{}
	}
	return &TerminalReporter{}
}

// TerminalReporter draws a progress bar that names the current document and
// its section count.
type TerminalReporter struct {
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(totalDocs int) {
	r.bar = progressbar.NewOptions(totalDocs,
		progressbar.OptionSetDescription("Splitting documents"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Document(current int, path string, sections int) {
	if r.bar == nil {
		return
	}
	r.bar.Describe(fmt.Sprintf("%s (%d sections)", path, sections))
	_ = r.bar.Set(current)
}

func (r *TerminalReporter) Finish(totalSections int) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	fmt.Fprintf(os.Stderr, "Collected %d sections\n", totalSections)
}

// CIReporter prints one line per document, suitable for build logs.
type CIReporter struct {
	totalDocs int
}

func (r *CIReporter) Start(totalDocs int) {
	r.totalDocs = totalDocs
	fmt.Fprintf(os.Stderr, "Splitting %d documents\n", totalDocs)
}

func (r *CIReporter) Document(current int, path string, sections int) {
	fmt.Fprintf(os.Stderr, "[%d/%d] %s: %d sections\n", current, r.totalDocs, path, sections)
}

func (r *CIReporter) Finish(totalSections int) {
	fmt.Fprintf(os.Stderr, "Collected %d sections\n", totalSections)
}
