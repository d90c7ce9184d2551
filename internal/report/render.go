// Package report renders verification reports for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"mandi-pricecheck/internal/verify"
)

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(v string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(v))) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown report format %q (text, json, yaml)", v)
}

// Options tune rendering.
type Options struct {
	Format Format
	// Verbose adds check details and the integrity slice to text output.
	Verbose bool
	// RecordLimit caps the integrity rows printed in verbose text output.
	RecordLimit int
}

// Render writes rep to w.
func Render(w io.Writer, rep verify.Report, opts Options) error {
	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return enc.Close()
	case FormatText, "":
		return renderText(w, rep, opts)
	default:
		return fmt.Errorf("unknown report format %q", opts.Format)
	}
}
