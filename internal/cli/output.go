package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// stdout and stderr are the writers of the running command. They are set
// from the cobra command before each run so tests can capture output.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgHiRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

const timeLayout = "2006-01-02 15:04:05 MST"

// Success prints a success message with a green checkmark
func Success(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(stdout, "%s %s\n", green("✓"), fmt.Sprintf(format, args...))
}

// Error prints an error message with a red X to stderr
func Error(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(stderr, "%s %s %s\n", red("✗"), red("Error:"), fmt.Sprintf(format, args...))
}

// Warning prints a warning message with a yellow warning sign to stderr
func Warning(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(stderr, "%s Warning: %s\n", yellow("⚠"), fmt.Sprintf(format, args...))
}

// Info prints an informational message
func Info(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(stdout, format+"\n", args...)
}

// Header prints a section header with underline
func Header(text string) {
	_, _ = fmt.Fprintln(stdout, bold(text))
	_, _ = fmt.Fprintln(stdout, strings.Repeat("=", len(text)))
	_, _ = fmt.Fprintln(stdout)
}

// Subheader prints a subsection header
func Subheader(text string) {
	_, _ = fmt.Fprintln(stdout, bold(text))
	_, _ = fmt.Fprintln(stdout, strings.Repeat("-", len(text)))
}

// Field prints a labeled field (key-value pair)
func Field(label, value string) {
	_, _ = fmt.Fprintf(stdout, "%s %s\n", gray(fmt.Sprintf("%-16s", label+":")), value)
}

// FieldIndented prints an indented labeled field
func FieldIndented(label, value string, indent int) {
	_, _ = fmt.Fprintf(stdout, "%s%-16s %s\n", strings.Repeat(" ", indent), label+":", value)
}

// EmptyLine prints an empty line
func EmptyLine() {
	_, _ = fmt.Fprintln(stdout)
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		_, _ = fmt.Fprintf(stdout, "  • %s\n", item)
	}
}

// Table represents a simple text table
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable creates a new table with the given headers
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// AddRow adds a row to the table
func (t *Table) AddRow(values ...string) {
	t.Rows = append(t.Rows, values)
}

// Print renders the table to stdout.
func (t *Table) Print() {
	if len(t.Headers) == 0 {
		return
	}

	widths := make([]int, len(t.Headers))
	for i, header := range t.Headers {
		widths[i] = len(header)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string, style func(...interface{}) string) {
		padded := make([]string, len(cells))
		for i, cell := range cells {
			if i < len(widths) {
				cell = fmt.Sprintf("%-*s", widths[i], cell)
			}
			if style != nil {
				cell = style(cell)
			}
			padded[i] = cell
		}
		_, _ = fmt.Fprintln(stdout, strings.TrimRight(strings.Join(padded, "  "), " "))
	}

	printRow(t.Headers, bold)

	total := 2 * (len(widths) - 1)
	for _, w := range widths {
		total += w
	}
	_, _ = fmt.Fprintln(stdout, strings.Repeat("-", total))

	for _, row := range t.Rows {
		printRow(row, nil)
	}
}

// JSON marshals and prints data as indented JSON
func JSON(v interface{}) error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatBytes formats byte sizes in human-readable format.
func FormatBytes(n int64) string {
	if n < 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(n))
}

// FormatTime prints t with its age, e.g. "2025-09-09 03:12:01 UTC (3 days ago)".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("%s (%s)", t.Format(timeLayout), humanize.Time(t))
}

// TruncateString truncates a string to maxLen with ellipsis
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// StatusIcon returns a colored status icon based on status string
func StatusIcon(status string) string {
	switch strings.ToLower(status) {
	case "pass", "ok", "valid", "success":
		return green("✓")
	case "warn", "warning":
		return yellow("⚠")
	case "fail", "error", "expired", "invalid":
		return red("✗")
	default:
		return "•"
	}
}

// ConfirmPrompt asks the user for confirmation on r.
func ConfirmPrompt(r io.Reader, message string) bool {
	_, _ = fmt.Fprintf(stderr, "%s [y/N]: ", message)
	var response string
	_, _ = fmt.Fscanln(r, &response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
