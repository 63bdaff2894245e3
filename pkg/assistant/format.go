package assistant

import (
	"fmt"
	"strings"
)

const errorMarker = "⚠️ "

// DefaultMaxReplyChars matches the tightest channel limit (WhatsApp and
// Telegram both cap a message at 4096 characters).
const DefaultMaxReplyChars = 4096

// Formatter turns a Result into the exact text sent back to the user.
type Formatter struct {
	MaxChars int
}

func NewFormatter(maxChars int) Formatter {
	if maxChars <= 0 {
		maxChars = DefaultMaxReplyChars
	}
	return Formatter{MaxChars: maxChars}
}

// Format prefixes failures with an error marker and truncates long
// listings to the channel limit, noting how many lines were dropped.
func (f Formatter) Format(res Result) string {
	text := res.Message
	if !res.Success {
		text = errorMarker + text
	}
	return f.truncate(text)
}

func (f Formatter) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= f.MaxChars {
		return text
	}

	// Leave room for the omission marker.
	budget := f.MaxChars - 16
	if budget < 1 {
		budget = 1
	}

	kept := string(runes[:budget])
	if cut := strings.LastIndexByte(kept, '\n'); cut > 0 {
		kept = kept[:cut]
		dropped := strings.Count(text, "\n") - strings.Count(kept, "\n")
		return fmt.Sprintf("%s\n… (+%d more)", kept, dropped)
	}
	return kept + "…"
}
