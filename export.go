package richiamo

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"gonum.org/v1/gonum/graph/encoding/dot"
)

// Format is an output format for the exported call graph.
type Format string

// Supported export formats.
const (
	FormatDOT Format = "dot"
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// ParseFormat validates a format name from the command line.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatDOT, FormatPNG, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want dot, png, or pdf)", s)
	}
}

// ExportError reports a failure to render or write the output artifact.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("failed to export %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// OutputPath derives the artifact name for a binary: its base name with a
// _callgraph suffix and the format's extension. The path is relative, so
// the artifact lands in the working directory unless the caller joins it
// onto an output directory.
func OutputPath(binary string, format Format) string {
	return fmt.Sprintf("%s_callgraph.%s", filepath.Base(binary), format)
}

// WriteDOT serializes the call graph as Graphviz DOT, using function
// names as node labels.
func (cg *CallGraph) WriteDOT(w io.Writer) error {
	data, err := dot.MarshalMulti(cg.g, "callgraph", "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal DOT: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return err
	}
	return nil
}

// Export writes the call graph to path in the given format. DOT is
// written directly; PNG and PDF are laid out by the Graphviz dot tool,
// which must be on PATH.
func Export(cg *CallGraph, format Format, path string) error {
	var buf bytes.Buffer
	if err := cg.WriteDOT(&buf); err != nil {
		return &ExportError{Path: path, Err: err}
	}

	if format == FormatDOT {
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return &ExportError{Path: path, Err: err}
		}
		return nil
	}

	cmd := exec.Command("dot", "-T"+string(format), "-o", path)
	cmd.Stdin = &buf
	if out, err := cmd.CombinedOutput(); err != nil {
		return &ExportError{Path: path, Err: fmt.Errorf("dot: %v: %s", err, bytes.TrimSpace(out))}
	}
	return nil
}
