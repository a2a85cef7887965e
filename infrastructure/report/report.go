package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nextver/nextver/domain"
)

var (
	majorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red
	minorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // yellow
	patchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // green
	headStyle  = lipgloss.NewStyle().Bold(true)
	fatalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// FormatFatal renders a run-ending error with the first line highlighted.
// With detail set, the wrapped causes are listed indented below it.
func FormatFatal(err error, detail bool) string {
	var b strings.Builder
	b.WriteString(fatalStyle.Render("Error: " + err.Error()))
	if detail {
		for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
			b.WriteString("\n  caused by: " + cause.Error())
		}
	}
	return b.String()
}

// Reporter renders resolution results either as a column-aligned table or as
// a structured JSON document.
type Reporter struct {
	out      io.Writer
	jsonMode bool
}

// NewReporter creates a reporter writing to out.
func NewReporter(out io.Writer, jsonMode bool) *Reporter {
	return &Reporter{out: out, jsonMode: jsonMode}
}

// jsonEntry is one update in JSON output; Age is omitted when unknown.
type jsonEntry struct {
	Old  string `json:"old"`
	New  string `json:"new"`
	Info string `json:"info"`
	Age  string `json:"age,omitempty"`
}

// PrintResults renders the updated dependencies. Resolutions without a new
// specifier have already been dropped by the service.
func (r *Reporter) PrintResults(resolutions []domain.Resolution) error {
	if r.jsonMode {
		grouped := make(map[string]map[string]jsonEntry)
		for _, res := range resolutions {
			section, ok := grouped[res.Section]
			if !ok {
				section = make(map[string]jsonEntry)
				grouped[res.Section] = section
			}
			section[res.Name] = jsonEntry{
				Old:  res.OldSpecifier,
				New:  res.NewSpecifier,
				Info: res.InfoURL,
				Age:  res.Age,
			}
		}
		return r.writeJSON(map[string]any{"results": grouped})
	}

	r.printTable(resolutions)
	return nil
}

// PrintMessage reports an informational no-op run.
func (r *Reporter) PrintMessage(message string) error {
	if r.jsonMode {
		return r.writeJSON(map[string]any{"message": message})
	}
	fmt.Fprintln(r.out, message)
	return nil
}

// PrintError reports a failure.
func (r *Reporter) PrintError(runErr error) error {
	if r.jsonMode {
		return r.writeJSON(map[string]any{"error": runErr.Error()})
	}
	fmt.Fprintf(r.out, "Error: %v\n", runErr)
	return nil
}

func (r *Reporter) writeJSON(doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Fprintln(r.out, string(data))
	return nil
}

func (r *Reporter) printTable(resolutions []domain.Resolution) {
	nameW, oldW, newW, ageW := len("NAME"), len("OLD"), len("NEW"), len("AGE")
	for _, res := range resolutions {
		if len(res.Name) > nameW {
			nameW = len(res.Name)
		}
		if len(res.OldSpecifier) > oldW {
			oldW = len(res.OldSpecifier)
		}
		if len(res.NewSpecifier) > newW {
			newW = len(res.NewSpecifier)
		}
		if len(res.Age) > ageW {
			ageW = len(res.Age)
		}
	}

	fmt.Fprintf(r.out, "%s  %s  %s  %s  %s\n",
		headStyle.Render(pad("NAME", nameW)),
		headStyle.Render(pad("OLD", oldW)),
		headStyle.Render(pad("NEW", newW)),
		headStyle.Render(pad("AGE", ageW)),
		headStyle.Render("INFO"))

	for _, res := range resolutions {
		fmt.Fprintf(r.out, "%s  %s  %s  %s  %s\n",
			pad(res.Name, nameW),
			pad(res.OldSpecifier, oldW),
			highlight(res.OldSpecifier, pad(res.NewSpecifier, newW)),
			pad(res.Age, ageW),
			res.InfoURL)
	}
}

// pad right-pads to the target visible width; styling is applied afterwards
// so ANSI codes never skew the column math.
func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// highlight colors the new specifier from the first dot-delimited segment
// that differs from the old one onward: red for the leading segment, yellow
// for the second, green for anything deeper.
func highlight(oldSpec, newSpec string) string {
	oldParts := strings.Split(oldSpec, ".")
	newParts := strings.Split(newSpec, ".")

	differing := -1
	for i := range newParts {
		if i >= len(oldParts) || oldParts[i] != newParts[i] {
			differing = i
			break
		}
	}
	if differing < 0 {
		return newSpec
	}

	style := patchStyle
	switch differing {
	case 0:
		style = majorStyle
	case 1:
		style = minorStyle
	}

	head := strings.Join(newParts[:differing], ".")
	tail := strings.Join(newParts[differing:], ".")
	if head == "" {
		return style.Render(tail)
	}
	return head + "." + style.Render(tail)
}

// FormatAge humanizes how long ago a version was published.
func FormatAge(published, now time.Time) string {
	if published.IsZero() || published.After(now) {
		return ""
	}

	days := int(now.Sub(published).Hours() / 24)
	switch {
	case days < 1:
		return "today"
	case days < 2:
		return "1 day"
	case days < 31:
		return fmt.Sprintf("%d days", days)
	case days < 61:
		return "1 month"
	case days < 366:
		return fmt.Sprintf("%d months", days/30)
	case days < 731:
		return "1 year"
	default:
		return fmt.Sprintf("%d years", days/365)
	}
}
