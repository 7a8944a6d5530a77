package corpus

import (
	"regexp"
	"strings"
)

var quoteLine = regexp.MustCompile(`(writes in|writes:|wrote:|says:|said:|^In article|^Quoted from|^\||^>)`)

// StripHeader drops everything up to and including the first blank line.
// A text without a blank line has no body and strips to "".
func StripHeader(text string) string {
	_, after, found := strings.Cut(text, "\n\n")
	if !found {
		return ""
	}
	return after
}

// StripFooter drops a trailing signature block, which starts at the last
// line made only of dashes or whitespace.
func StripFooter(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	lineNum := len(lines) - 1
	for ; lineNum >= 0; lineNum-- {
		if strings.Trim(strings.TrimSpace(lines[lineNum]), "-") == "" {
			break
		}
	}
	if lineNum > 0 {
		return strings.Join(lines[:lineNum], "\n")
	}
	return text
}

// StripQuotes removes quoted reply lines and their attribution lines
func StripQuotes(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if !quoteLine.MatchString(line) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// Strip applies the selected strippers in header, footer, quotes order
func Strip(text string, opts StripOptions) string {
	if opts.Headers {
		text = StripHeader(text)
	}
	if opts.Footers {
		text = StripFooter(text)
	}
	if opts.Quotes {
		text = StripQuotes(text)
	}
	return text
}
