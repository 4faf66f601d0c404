package answers

import (
	"fmt"
	"strings"
)

// Entry is one option bound for a serialized answer file.
type Entry struct {
	Key   string
	Title string
	Value string
}

// Serialize renders entries in the answer-file format: a comment line holding
// the title (the raw key when no title is known), the key=value line, and a
// blank separator. The output parses back through Parse unchanged.
func Serialize(entries []Entry) []byte {
	var b strings.Builder
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = e.Key
		}
		fmt.Fprintf(&b, "# %s.\n%s = %s\n\n", title, e.Key, e.Value)
	}
	return []byte(b.String())
}
