package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/owl/internal/lookup"
)

type Format string

func (f *Format) Set(val string) error {
	for _, format := range allFormats {
		if val == string(format) {
			*f = format
			return nil
		}
	}
	return fmt.Errorf("invalid format: %s", val)
}

func (f Format) String() string {
	return string(f)
}

func (f *Format) Type() string {
	return "format"
}

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	_          pflag.Value = (*Format)(nil)
	allFormats             = []Format{FormatText, FormatJSON, FormatYAML}
)

func addFormatFlag(flags *pflag.FlagSet, format *Format) {
	*format = FormatText
	flags.VarP(format, "format", "o", fmt.Sprintf("Output format. Possible values are %v", allFormats))
}

// writeData encodes data as JSON or YAML.
func (f Format) writeData(w io.Writer, data any) error {
	switch f {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("encoder.Encode > %w", err)
		}
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("encoder.Encode > %w", err)
		}
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("encoder.Close > %w", err)
		}
	default:
		return fmt.Errorf("format %s can't encode data", f)
	}
	return nil
}

// writeResult prints one search result. The text format renders the entry with tmpl.
func (f Format) writeResult(w io.Writer, result lookup.Result, tmpl *template.Template) error {
	if f != FormatText {
		return f.writeData(w, result)
	}

	if err := tmpl.Execute(w, result.Entry); err != nil {
		return fmt.Errorf("tmpl.Execute > %w", err)
	}
	if result.Favourite {
		if _, err := color.New(color.FgYellow).Fprintln(w, "★ favourite"); err != nil {
			return err
		}
	}
	if result.Stale {
		if _, err := color.New(color.Faint).Fprintf(w, "cached on %s, refreshing\n", result.FetchedAt.Local().Format("2006-01-02 15:04")); err != nil {
			return err
		}
	}
	return nil
}
