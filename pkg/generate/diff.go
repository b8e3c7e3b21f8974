package generate

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// contextLines is the number of unchanged lines kept around each change.
const contextLines = 2

// Diff renders a line diff of old against updated. Unchanged runs longer than
// the context are collapsed into a "@@" marker. An empty string means the
// contents are equal.
func Diff(name string, old, updated []byte) string {
	dmp := diffmatchpatch.New()

	src, dst, lines := dmp.DiffLinesToRunes(string(old), string(updated))
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(src, dst, false), lines)

	changed := false

	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffEqual {
			changed = true

			break
		}
	}

	if !changed {
		return ""
	}

	var b strings.Builder

	b.WriteString("--- " + name + " (on disk)\n")
	b.WriteString("+++ " + name + " (generated)\n")

	for i, d := range diffs {
		text := splitLines(d.Text)

		switch d.Type {
		case diffmatchpatch.DiffDelete:
			writeLines(&b, "-", text)
		case diffmatchpatch.DiffInsert:
			writeLines(&b, "+", text)
		case diffmatchpatch.DiffEqual:
			writeContext(&b, text, i == 0, i == len(diffs)-1)
		}
	}

	return b.String()
}

func writeContext(b *strings.Builder, text []string, first, last bool) {
	head, tail := contextLines, contextLines
	if first {
		head = 0
	}

	if last {
		tail = 0
	}

	if len(text) <= head+tail {
		writeLines(b, " ", text)

		return
	}

	writeLines(b, " ", text[:head])
	b.WriteString("@@\n")
	writeLines(b, " ", text[len(text)-tail:])
}

func writeLines(b *strings.Builder, prefix string, text []string) {
	for _, line := range text {
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
