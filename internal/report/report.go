// Package report renders counterexample diagnoses in the fixed
// human-readable format consumed by users and the test suite.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/gpuverify/kernelcheck/internal/cex"
)

const separatorWidth = 72

var (
	errorStyle   = color.New(color.FgRed, color.Bold)
	fileStyle    = color.New(color.FgCyan, color.Bold)
	lineStyle    = color.New(color.FgBlue, color.Bold)
	messageStyle = color.New(color.FgRed, color.Bold)
	threadStyle  = color.New(color.FgYellow, color.Bold)
)

// SourceReader fetches a single line of source text. The default
// implementation reads from disk; tests substitute fixtures.
type SourceReader func(dir, file string, line int) (string, bool)

// FileSource reads source lines from the filesystem, degrading to
// absence when the file cannot be read.
func FileSource(dir, file string, line int) (string, bool) {
	content, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		return "", false
	}
	lines := strings.Split(string(content), "\n")
	if line < 1 || line > len(lines) {
		return "", false
	}
	return lines[line-1], true
}

// Render formats one diagnosis.
func Render(d *cex.Diagnosis, src SourceReader) string {
	if src == nil {
		src = FileSource
	}
	var sb strings.Builder
	sb.WriteString(strings.Repeat("-", separatorWidth) + "\n")
	sb.WriteString(header(d))
	writeChain(&sb, d.Loc, src)
	if len(d.ConflictLocs) > 0 {
		sb.WriteString(messageStyle.Sprint("conflicting access:") + "\n")
		for _, c := range d.ConflictLocs {
			writeChain(&sb, c, src)
		}
	}
	writeThreadInfo(&sb, d)
	writeParams(&sb, d)
	return sb.String()
}

// RenderAll formats every diagnosis in order.
func RenderAll(ds []*cex.Diagnosis, src SourceReader) string {
	var sb strings.Builder
	for _, d := range ds {
		sb.WriteString(Render(d, src))
	}
	return sb.String()
}

func header(d *cex.Diagnosis) string {
	top := d.Loc.Top()
	msg := string(d.Class.Kind)
	if d.Class.Race != nil {
		msg = fmt.Sprintf("possible %s race", d.Class.Race.Name)
		if d.Access != "" {
			msg += " on " + d.Access
		}
	}
	return errorStyle.Sprint("error: ") + messageStyle.Sprint(msg) + " " +
		fileStyle.Sprintf("%s:%d:%d", top.File, top.Line, top.Col) + "\n"
}

// writeChain prints the immediate source line and, for inlined or
// unrolled origins, the call chain leading to it.
func writeChain(sb *strings.Builder, chain cex.LocChain, src SourceReader) {
	for i, rec := range chain {
		indent := strings.Repeat("  ", i)
		if i > 0 {
			sb.WriteString(lineStyle.Sprintf("%scalled from %s:%d:%d\n", indent, rec.File, rec.Line, rec.Col))
		}
		if text, ok := src(rec.Dir, rec.File, rec.Line); ok {
			sb.WriteString(lineStyle.Sprintf("%s%4d | ", indent, rec.Line))
			sb.WriteString(text + "\n")
		}
	}
}

func writeThreadInfo(sb *strings.Builder, d *cex.Diagnosis) {
	for t := 0; t < 2; t++ {
		if d.LocalIDs[t] == "" && d.GroupIDs[t] == "" {
			continue
		}
		sb.WriteString(threadStyle.Sprintf("thread %d:", t+1))
		if d.LocalIDs[t] != "" {
			sb.WriteString(" local id = " + d.LocalIDs[t])
		}
		if d.GroupIDs[t] != "" {
			sb.WriteString(" group id = " + d.GroupIDs[t])
		}
		sb.WriteString("\n")
	}
}

func writeParams(sb *strings.Builder, d *cex.Diagnosis) {
	if len(d.Params) == 0 {
		return
	}
	sb.WriteString(lineStyle.Sprint("kernel arguments:") + "\n")
	for _, p := range d.Params {
		if p.Thread > 0 {
			fmt.Fprintf(sb, "  %s = %s (thread %d)\n", p.Name, p.Value, p.Thread)
		} else {
			fmt.Fprintf(sb, "  %s = %s\n", p.Name, p.Value)
		}
	}
}
