package channels

import "strings"

// splitMessage breaks content into chunks of at most limit runes,
// preferring newline boundaries so listings stay readable across chunks.
func splitMessage(content string, limit int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if limit <= 0 {
		return []string{content}
	}

	var chunks []string
	runes := []rune(content)
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = append(chunks, string(runes))
			break
		}

		cut := limit
		window := string(runes[:limit])
		if nl := strings.LastIndexByte(window, '\n'); nl > limit/2 {
			cut = len([]rune(window[:nl]))
		}

		chunk := strings.TrimRight(string(runes[:cut]), "\n")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
		for len(runes) > 0 && runes[0] == '\n' {
			runes = runes[1:]
		}
	}
	return chunks
}
