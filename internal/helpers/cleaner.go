package helpers

import (
	"strings"
	"unicode/utf8"
)

// UnwrapMarkdown strips a single fence wrapping the whole of s. Models often
// answer "```markdown\n...\n```" when asked for Markdown; anything that is not
// entirely fenced is returned trimmed but otherwise untouched.
func UnwrapMarkdown(s string) string {
	s = strings.TrimSpace(trimBOM(s))
	for _, fence := range []string{"```", "~~~"} {
		if !strings.HasPrefix(s, fence) || !strings.HasSuffix(s, fence) || len(s) < 2*len(fence) {
			continue
		}
		nl := strings.IndexByte(s, '\n')
		if nl == -1 {
			continue
		}
		info := strings.ToLower(strings.TrimSpace(s[len(fence):nl]))
		switch info {
		case "", "md", "markdown":
		default:
			continue
		}
		inner := s[nl+1 : len(s)-len(fence)]
		if strings.Contains(inner, "\n"+fence+"\n") {
			// more than one block; the fence is part of the content
			continue
		}
		return strings.TrimSpace(inner)
	}
	return s
}

func trimBOM(s string) string {
	if strings.HasPrefix(s, "\uFEFF") {
		_, size := utf8.DecodeRuneInString(s)
		return s[size:]
	}
	return s
}
