package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// PreviewSnippetLength bounds the content excerpt shown before a commit.
const PreviewSnippetLength = 500

// DiffLine is one line of a line-level diff. Op is '+', '-' or ' '.
type DiffLine struct {
	Op   byte
	Text string
}

// LineDiff compares two file bodies line by line.
func LineDiff(before, after string) []DiffLine {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []DiffLine
	for _, d := range diffs {
		op := byte(' ')
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = '+'
		case diffmatchpatch.DiffDelete:
			op = '-'
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out = append(out, DiffLine{Op: op, Text: strings.TrimSuffix(line, "\n")})
		}
	}
	return out
}

// WriteDiff prints lines in unified style, colouring additions and removals
// unless color.NoColor is set.
func WriteDiff(w io.Writer, lines []DiffLine) error {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	for _, line := range lines {
		var err error
		switch line.Op {
		case '+':
			_, err = added.Fprintf(w, "+%s\n", line.Text)
		case '-':
			_, err = removed.Fprintf(w, "-%s\n", line.Text)
		default:
			_, err = fmt.Fprintf(w, " %s\n", line.Text)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Snippet truncates body to PreviewSnippetLength runes.
func Snippet(body string) string {
	runes := []rune(body)
	if len(runes) <= PreviewSnippetLength {
		return body
	}
	return string(runes[:PreviewSnippetLength]) + "..."
}
