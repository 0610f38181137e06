package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// OutputFormat is the encoding of command results.
type OutputFormat string

const (
	FormatYAML OutputFormat = "yaml"
	FormatJSON OutputFormat = "json"
	// FormatRaw writes strings and bytes unchanged and anything else as
	// YAML.
	FormatRaw OutputFormat = "raw"
)

var encoders = map[OutputFormat]func(any) ([]byte, error){
	"":         yaml.Marshal,
	FormatYAML: yaml.Marshal,
	FormatJSON: func(v any) ([]byte, error) {
		b, err := json.MarshalIndent(v, "", "  ")
		return append(b, '\n'), err
	},
	FormatRaw: func(v any) ([]byte, error) {
		switch v := v.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
		return yaml.Marshal(v)
	},
}

// OutputOptions says where and how Output writes.
type OutputOptions struct {
	Format OutputFormat

	// File is the destination path; empty means stdout.
	File string

	// Writer, if set, takes precedence over File.
	Writer io.Writer
}

// Output encodes result and writes it to the configured destination.
func Output(result any, opts OutputOptions) error {
	encode, ok := encoders[opts.Format]
	if !ok {
		return fmt.Errorf("cli: unsupported output format %q", opts.Format)
	}
	data, err := encode(result)
	if err != nil {
		return fmt.Errorf("cli: encode output: %w", err)
	}

	w := opts.Writer
	if w == nil && opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("cli: create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if w == nil {
		w = os.Stdout
	}
	_, err = w.Write(data)
	return err
}

// OutputBytes writes binary data, such as synthesized audio, to path.
func OutputBytes(data []byte, path string) error {
	if path == "" {
		return fmt.Errorf("cli: an output file is required for binary data")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cli: write output: %w", err)
	}
	return nil
}

func notice(w io.Writer, mark, format string, args ...any) {
	fmt.Fprintf(w, mark+" "+format+"\n", args...)
}

// PrintSuccess, PrintInfo and PrintWarning report progress on stdout;
// PrintError goes to stderr.
func PrintSuccess(format string, args ...any) { notice(os.Stdout, "✓", format, args...) }
func PrintInfo(format string, args ...any)    { notice(os.Stdout, "ℹ", format, args...) }
func PrintWarning(format string, args ...any) { notice(os.Stdout, "⚠", format, args...) }
func PrintError(format string, args ...any)   { notice(os.Stderr, "Error:", format, args...) }
