package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/mvp-joe/docmint/internal/analyzer"
	"github.com/schollz/progressbar/v3"
)

// CLIProgressReporter implements analyzer.ProgressReporter with a progress
// bar for parsing and one-line messages for the other stages.
type CLIProgressReporter struct {
	out     io.Writer
	fileBar *progressbar.ProgressBar
}

// NewCLIProgressReporter creates a reporter writing to out, normally stderr.
func NewCLIProgressReporter(out io.Writer) *CLIProgressReporter {
	return &CLIProgressReporter{out: out}
}

func (c *CLIProgressReporter) OnDiscoveryStart() {
	fmt.Fprintln(c.out, "Discovering Python files...")
}

func (c *CLIProgressReporter) OnDiscoveryComplete(files int) {
	fmt.Fprintf(c.out, "Found %s source files\n", formatNumber(files))
}

func (c *CLIProgressReporter) OnParsingStart(totalFiles int) {
	out := c.out
	c.fileBar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("Parsing files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(out)
		}),
	)
}

func (c *CLIProgressReporter) OnFileParsed(relPath string) {
	if c.fileBar != nil {
		c.fileBar.Add(1)
	}
}

func (c *CLIProgressReporter) OnResolutionStart(symbols int) {
	if c.fileBar != nil {
		c.fileBar.Finish()
		c.fileBar = nil
	}
	fmt.Fprintf(c.out, "Resolving endpoints across %s symbols...\n", formatNumber(symbols))
}

func (c *CLIProgressReporter) OnComplete(stats *analyzer.Stats) {
	fmt.Fprintf(c.out, "✓ Analysis complete in %.1fs\n", stats.Duration.Seconds())
}

// formatNumber adds thousands separators: 12345 -> "12,345".
func formatNumber(n int) string {
	if n < 1000 && n > -1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	sign := ""
	if str[0] == '-' {
		sign, str = "-", str[1:]
	}
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return sign + result
}
