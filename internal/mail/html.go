package mail

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML reduces an HTML body to plain text so markup never leaks
// into pattern matching. Script and style contents are dropped, block
// boundaries become spaces, and runs of whitespace collapse.
func StripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return collapseSpace(s)
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skipDepth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if isSkippedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isSkippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isSkippedTag(name string) bool {
	return name == "script" || name == "style" || name == "head"
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
