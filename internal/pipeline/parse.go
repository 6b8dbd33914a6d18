package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Record is one unit of gathered research. Origin is a URL, or a
// comma-joined list of URLs for pooled transcripts.
type Record struct {
	Origin  string
	Content string
}

// BuildCorpus labels each record with its 1-based source index.
func BuildCorpus(records []Record) string {
	var sb strings.Builder
	for i, r := range records {
		fmt.Fprintf(&sb, "[SOURCE %d]: URL = %s\nCONTENT: %s\n\n", i+1, r.Origin, r.Content)
	}
	return sb.String()
}

// HeadingLines returns the outline lines that start with a Markdown heading
// marker, trimmed, in outline order.
func HeadingLines(outline string) []string {
	var out []string
	for _, line := range strings.Split(outline, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			out = append(out, line)
		}
	}
	return out
}

var leadingNumbering = regexp.MustCompile(`^\W*\d+\.?\d*\s*`)

// CleanHeading strips heading markers and leading section numbering:
// "## 2.1 Light Reactions" becomes "Light Reactions".
func CleanHeading(heading string) string {
	s := leadingNumbering.ReplaceAllString(heading, "")
	s = strings.TrimLeft(s, "# \t")
	return strings.TrimSpace(s)
}

// eligibleHeading reports whether a cleaned title is long enough to illustrate.
func eligibleHeading(clean string, min int) bool {
	return clean != "" && utf8.RuneCountInString(clean) > min
}

// Image pairs an outline heading with the image chosen for it. A repeated
// heading is looked up and listed once.
type Image struct {
	Heading string
	URL     string
}

// ImageInstructions renders the per-section image lines in outline order.
func ImageInstructions(images []Image) string {
	lines := make([]string, 0, len(images))
	for _, img := range images {
		lines = append(lines, fmt.Sprintf("- For section '%s', use image URL: %s", img.Heading, img.URL))
	}
	return strings.Join(lines, "\n")
}
