package extract

import (
	"regexp"
	"strings"
)

var (
	pageHeaderRe = regexp.MustCompile(`(?i)Page\s+\d+(\s+of\s+\d+)?`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	spaceRunsRe  = regexp.MustCompile(`[ \t]+`)
)

// CleanText strips common extraction noise: "Page X of Y" headers and
// footers, runs of blank lines, excessive whitespace, and form feeds.
func CleanText(text string) string {
	text = pageHeaderRe.ReplaceAllString(text, "")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	text = spaceRunsRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	text = strings.ReplaceAll(text, "\f", "")
	return strings.TrimSpace(text)
}

// CleanPages returns a copy of pages with cleaned text and refreshed counts.
func CleanPages(pages []Page) []Page {
	cleaned := make([]Page, 0, len(pages))
	for _, p := range pages {
		cleaned = append(cleaned, NewPage(p.PageNumber, CleanText(p.Text)))
	}
	return cleaned
}
