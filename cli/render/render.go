// Package render provides output rendering for the sdlink CLI.
//
// Format selection:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format always overrides the default
//
// --no-color affects table output only.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/sdlink/types"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string. The empty string is returned as-is
// so the caller can apply the TTY default.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatYAML, "":
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from the --format and --no-color flags,
// writing to the app's writer. The default format is table on a TTY and
// json otherwise.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if c.App != nil && c.App.Writer != nil {
		out = c.App.Writer
	}
	if format == "" {
		format = FormatJSON
		if f, ok := out.(*os.File); ok && IsTTY(f) {
			format = FormatTable
		}
	}

	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     out,
	}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, noColor: noColor, out: out}
}

// Format returns the resolved output format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		return r.renderYAML(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTree outputs a file tree. Table format draws an indented tree;
// json and yaml encode the node structure.
func (r *Renderer) RenderTree(root *types.FileNode) error {
	if r.format != FormatTable {
		return r.Render(root)
	}
	dirStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sizeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	var b strings.Builder
	var draw func(n *types.FileNode, prefix string, last, top bool)
	draw = func(n *types.FileNode, prefix string, last, top bool) {
		name := n.Name
		meta := ""
		if n.IsDir() {
			if !strings.HasSuffix(name, "/") {
				name += "/"
			}
			if !r.noColor {
				name = dirStyle.Render(name)
			}
		} else {
			meta = " " + FormatBytes(n.Size)
			if !r.noColor {
				meta = " " + sizeStyle.Render(FormatBytes(n.Size))
			}
		}

		childPrefix := prefix
		if top {
			b.WriteString(name + meta + "\n")
		} else {
			branch, cont := "├── ", "│   "
			if last {
				branch, cont = "└── ", "    "
			}
			b.WriteString(prefix + branch + name + meta + "\n")
			childPrefix = prefix + cont
		}
		for i, c := range n.Children {
			draw(c, childPrefix, i == len(n.Children)-1, false)
		}
	}
	draw(root, "", true, true)

	_, err := io.WriteString(r.out, b.String())
	return err
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func (r *Renderer) renderJSON(data any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Renderer) renderYAML(data any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

func (r *Renderer) renderTable(data any) error {
	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	v := reflect.ValueOf(data)

	if v.Kind() == reflect.Slice {
		if v.Len() == 0 {
			_, err := fmt.Fprintln(r.out, "(no results)")
			return err
		}
		// The first row fixes the columns; map rows are looked up by them.
		cols, _ := cells(v.Index(0), nil)
		fmt.Fprintln(tw, r.header(strings.Join(cols, "\t")))
		for i := range v.Len() {
			_, vals := cells(v.Index(i), cols)
			fmt.Fprintln(tw, strings.Join(vals, "\t"))
		}
		return tw.Flush()
	}

	names, vals := cells(v, nil)
	if names == nil {
		fmt.Fprintf(tw, "%v\n", indirect(v))
	}
	for i, name := range names {
		fmt.Fprintf(tw, "%s:\t%s\n", name, vals[i])
	}
	return tw.Flush()
}

func (r *Renderer) header(s string) string {
	s = strings.ToUpper(s)
	if r.noColor {
		return s
	}
	return lipgloss.NewStyle().Bold(true).Render(s)
}

func indirect(v reflect.Value) reflect.Value {
	for (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

// cells flattens a struct or map into parallel name and value columns.
// Struct fields come in declaration order. Map entries come in key order,
// or in the order of keys when given. Other kinds yield nil.
func cells(v reflect.Value, keys []string) (names, values []string) {
	v = indirect(v)
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			if f := t.Field(i); f.IsExported() {
				names = append(names, fieldName(f))
				values = append(values, formatValue(v.Field(i)))
			}
		}
	case reflect.Map:
		if keys == nil {
			for _, k := range v.MapKeys() {
				keys = append(keys, fmt.Sprint(k.Interface()))
			}
			sort.Strings(keys)
		}
		for _, k := range keys {
			names = append(names, k)
			values = append(values, formatValue(mapIndex(v, k)))
		}
	}
	return names, values
}

// mapIndex looks up a map entry by its rendered key. Only string-kinded
// keys are addressable this way.
func mapIndex(m reflect.Value, key string) reflect.Value {
	kt := m.Type().Key()
	if kt.Kind() != reflect.String {
		return reflect.Value{}
	}
	return m.MapIndex(reflect.ValueOf(key).Convert(kt))
}

// fieldName prefers the json tag name.
func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}

func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v = indirect(v); (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return ""
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		switch {
		case v.Type().Elem().Kind() == reflect.Uint8:
			return FormatBytes(int64(v.Len()))
		case v.Len() == 0:
			return "[]"
		case v.Type().Elem().Kind() == reflect.String && v.Len() <= 4:
			parts := make([]string, v.Len())
			for i := range parts {
				parts[i] = v.Index(i).String()
			}
			return strings.Join(parts, ",")
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String()
		}
		return "{...}"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// IsTTY reports whether f is a character device.
func IsTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
