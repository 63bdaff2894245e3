package assistant

import (
	"fmt"
	"strings"
	"testing"
)

func TestFormatSuccessIsVerbatim(t *testing.T) {
	f := NewFormatter(100)
	got := f.Format(Result{Success: true, Message: "Deleted /a.pdf."})
	if got != "Deleted /a.pdf." {
		t.Fatalf("Format() = %q", got)
	}
}

func TestFormatFailureGetsMarker(t *testing.T) {
	f := NewFormatter(100)
	got := f.Format(Result{Success: false, Message: "no"})
	if !strings.HasPrefix(got, errorMarker) {
		t.Fatalf("Format() = %q, want error marker prefix", got)
	}
}

func TestFormatTruncatesListing(t *testing.T) {
	f := NewFormatter(200)

	var b strings.Builder
	b.WriteString("Contents of /big:\n")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "file-%02d.txt (1.0 KB)\n", i)
	}
	msg := strings.TrimRight(b.String(), "\n")

	got := f.Format(Result{Success: true, Message: msg})
	if len([]rune(got)) > 200 {
		t.Fatalf("Format() produced %d chars, limit 200", len([]rune(got)))
	}
	if !strings.Contains(got, "… (+") || !strings.Contains(got, "more)") {
		t.Fatalf("Format() = %q, want omission marker", got)
	}
	// Kept lines must be whole.
	for _, line := range strings.Split(got, "\n") {
		if strings.HasPrefix(line, "file-") && !strings.HasSuffix(line, "(1.0 KB)") {
			t.Fatalf("partial line in output: %q", line)
		}
	}
}

func TestFormatTruncatesSingleLongLine(t *testing.T) {
	f := NewFormatter(50)
	got := f.Format(Result{Success: true, Message: strings.Repeat("a", 500)})
	if len([]rune(got)) > 50 {
		t.Fatalf("Format() produced %d chars, limit 50", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("Format() = %q, want ellipsis suffix", got)
	}
}

func TestFormatShortMessageUntouched(t *testing.T) {
	f := NewFormatter(0) // zero means the default limit
	msg := "ok"
	if got := f.Format(Result{Success: true, Message: msg}); got != msg {
		t.Fatalf("Format() = %q", got)
	}
}
