package action

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Parser turns a raw reply into actions.
type Parser func(reply string) ParseResult

// ParseResult is the detailed outcome of Parse.
type ParseResult struct {
	Actions []Action
	Skipped []string // well-formed blocks with unknown tags, lower-cased
}

// Parse extracts every [TAG]...[/TAG] block from reply in order of appearance.
// It never returns an empty slice: replies without recognised blocks yield
// a single KindNone action.
func Parse(reply string) []Action {
	return ParseDetailed(reply).Actions
}

// ParseDetailed is Parse that also reports skipped unknown tags.
//
// The scan is left to right. At each '[' it reads a tag name of word
// characters followed by ']', then looks for the first "[/NAME]" with the
// exact same spelling. A match consumes the whole block; an opening tag
// without its close is ignored and scanning resumes right after its '['.
// Nested blocks with the same name therefore end at the first close tag.
func ParseDetailed(reply string) ParseResult {
	var res ParseResult

	pos := 0
	for pos < len(reply) {
		open := strings.IndexByte(reply[pos:], '[')
		if open < 0 {
			break
		}
		open += pos

		name, bodyStart, ok := readOpenTag(reply, open)
		if !ok {
			pos = open + 1
			continue
		}

		closeTag := "[/" + name + "]"
		end := strings.Index(reply[bodyStart:], closeTag)
		if end < 0 {
			pos = open + 1
			continue
		}
		end += bodyStart

		body := reply[bodyStart:end]
		pos = end + len(closeTag)

		lower := strings.ToLower(name)
		kind, known := KindFromName(lower)
		if !known {
			res.Skipped = append(res.Skipped, lower)
			continue
		}
		res.Actions = append(res.Actions, buildAction(kind, body))
	}

	if len(res.Actions) == 0 {
		res.Actions = []Action{None()}
	}
	return res
}

// readOpenTag reads "[name]" at reply[at]. It returns the name and the index
// just past the closing bracket.
func readOpenTag(reply string, at int) (string, int, bool) {
	i := at + 1
	for i < len(reply) {
		r, size := utf8.DecodeRuneInString(reply[i:])
		if !isWordRune(r) {
			break
		}
		i += size
	}
	if i == at+1 || i >= len(reply) || reply[i] != ']' {
		return "", 0, false
	}
	return reply[at+1 : i], i + 1, true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func buildAction(kind Kind, body string) Action {
	if kind != KindModify {
		return Action{Kind: kind, Content: strings.TrimSpace(body)}
	}
	path, content, err := splitModifyBody(body)
	if err != nil {
		return Action{Kind: KindModify, Content: strings.TrimSpace(body), Err: err}
	}
	return Action{Kind: KindModify, FilePath: path, Content: content}
}

// splitModifyBody finds "FILE: " and the first "\n---\n" after it.
func splitModifyBody(body string) (string, string, error) {
	const (
		fileMarker = "FILE: "
		separator  = "\n---\n"
	)

	idx := strings.Index(body, fileMarker)
	if idx < 0 {
		return "", "", fmt.Errorf("%w: missing %q header", ErrModifyMalformed, strings.TrimSpace(fileMarker))
	}
	rest := body[idx+len(fileMarker):]

	sep := strings.Index(rest, separator)
	if sep < 0 {
		return "", "", fmt.Errorf("%w: missing --- separator", ErrModifyMalformed)
	}

	path := strings.TrimSpace(rest[:sep])
	if path == "" {
		return "", "", fmt.Errorf("%w: empty file path", ErrModifyMalformed)
	}
	return path, strings.TrimSpace(rest[sep+len(separator):]), nil
}
