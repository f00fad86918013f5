package style

import "testing"

func TestTableRendersHeaderAndRows(t *testing.T) {
	tbl := NewTable(
		Column{Name: "ID", Width: 8},
		Column{Name: "STATUS", Width: 10},
	)
	tbl.AddRow("abc12345", "Review")

	out := tbl.Render()
	if out == "" {
		t.Fatal("expected non-empty render")
	}
	if got := stripAnsi(out); len(got) == 0 {
		t.Fatal("expected non-empty plain text after stripping ansi")
	}
}

func TestTableTruncatesOverlongValues(t *testing.T) {
	tbl := NewTable(Column{Name: "TITLE", Width: 10})
	tbl.AddRow("this value is much too long for the column")

	out := stripAnsi(tbl.Render())
	for _, line := range splitLines(out) {
		// Two-space indent plus the 10-wide column.
		if len(line) > 12 {
			t.Fatalf("line wider than the column allows: %q", line)
		}
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return lines
}
