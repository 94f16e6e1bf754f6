package wsfile

import "testing"

func TestNumberLines_Basic(t *testing.T) {
	out, total := NumberLines("hello", 0, 0)
	if out != "1\thello" {
		t.Errorf("NumberLines = %q, want %q", out, "1\thello")
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
}

func TestNumberLines_Multiline(t *testing.T) {
	out, total := NumberLines("a\nb\nc", 0, 0)
	want := "1\ta\n2\tb\n3\tc"
	if out != want {
		t.Errorf("NumberLines = %q, want %q", out, want)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
}

func TestNumberLines_TrailingNewline(t *testing.T) {
	out, total := NumberLines("a\nb\n", 0, 0)
	want := "1\ta\n2\tb"
	if out != want {
		t.Errorf("NumberLines = %q, want %q", out, want)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestNumberLines_Window(t *testing.T) {
	content := "a\nb\nc\nd\ne"

	out, _ := NumberLines(content, 1, 2)
	want := "2\tb\n3\tc"
	if out != want {
		t.Errorf("NumberLines(offset=1, limit=2) = %q, want %q", out, want)
	}

	// Numbering continues from the absolute position, not the window start.
	out, _ = NumberLines(content, 3, 10)
	want = "4\td\n5\te"
	if out != want {
		t.Errorf("NumberLines(offset=3) = %q, want %q", out, want)
	}
}

func TestNumberLines_OffsetPastEnd(t *testing.T) {
	out, total := NumberLines("a\nb", 10, 5)
	if out != "" {
		t.Errorf("NumberLines past end = %q, want empty", out)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestNumberLines_PreservesBlankLines(t *testing.T) {
	out, total := NumberLines("a\n\nc", 0, 0)
	want := "1\ta\n2\t\n3\tc"
	if out != want {
		t.Errorf("NumberLines = %q, want %q", out, want)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
}
