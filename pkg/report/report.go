// Package report renders human-readable summaries of inferred schemas and
// conversion runs.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajitpratap0/strata/internal/schema"
)

// SchemaMarkdown renders a schema artifact as a Markdown table.
func SchemaMarkdown(art *schema.Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Schema: %s\n\n", art.Source)
	fmt.Fprintf(&b, "- Dialect: %s\n", art.Dialect)
	fmt.Fprintf(&b, "- Sampled records: %d\n", art.Sampled)
	fmt.Fprintf(&b, "- Fields: %d\n", len(art.Fields))
	fmt.Fprintf(&b, "- Generated: %s\n\n", art.GeneratedAt.Format(time.RFC3339))

	b.WriteString("| Field | Type | Nullable | Observed |\n")
	b.WriteString("|-------|------|----------|----------|\n")
	for _, f := range art.Fields {
		nullable := "no"
		if f.Nullable {
			nullable = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d |\n", f.Name, f.Type, nullable, f.Observed)
	}
	return b.String()
}

// SchemaText renders a compact fixed-width schema listing for terminals.
func SchemaText(art *schema.Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %d records sampled)\n", art.Source, art.Dialect, art.Sampled)
	width := 0
	for _, f := range art.Fields {
		if len(f.Name) > width {
			width = len(f.Name)
		}
	}
	for _, f := range art.Fields {
		suffix := ""
		if f.Nullable {
			suffix = " (nullable)"
		}
		fmt.Fprintf(&b, "  %-*s  %s%s\n", width, f.Name, f.Type, suffix)
	}
	return b.String()
}
