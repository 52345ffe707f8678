package action

import (
	"fmt"
	"regexp"
)

// Legacy fenced-block patterns, tried in this order. (?s) lets bodies span lines.
var fencedPatterns = []struct {
	kind Kind
	re   *regexp.Regexp
}{
	{KindBash, regexp.MustCompile("(?s)```bash\n(.*?)```")},
	{KindModify, regexp.MustCompile("(?s)```modify\n(.*?)\n---\n(.*?)```")},
	{KindAnalyze, regexp.MustCompile("(?s)```analyze\n(.*?)```")},
}

// ParseFenced applies the legacy grammar: the first pattern that matches
// anywhere in reply wins, and only its first match is used. param2 is set
// only for modify. Bodies are returned untrimmed.
func ParseFenced(reply string) (Kind, string, string) {
	for _, p := range fencedPatterns {
		m := p.re.FindStringSubmatch(reply)
		if m == nil {
			continue
		}
		if p.kind == KindModify {
			return p.kind, m[1], m[2]
		}
		return p.kind, m[1], ""
	}
	return KindNone, "", ""
}

// ParseFencedActions converts the ParseFenced match into a single Action.
func ParseFencedActions(reply string) []Action {
	kind, p1, p2 := ParseFenced(reply)
	switch kind {
	case KindNone:
		return []Action{None()}
	case KindModify:
		return []Action{{Kind: KindModify, FilePath: p1, Content: p2}}
	default:
		return []Action{{Kind: kind, Content: p1}}
	}
}

// ForGrammar returns the parser for a grammar name ("tags" or "fenced").
func ForGrammar(grammar string) (Parser, error) {
	switch grammar {
	case "", "tags":
		return ParseDetailed, nil
	case "fenced":
		return func(reply string) ParseResult {
			return ParseResult{Actions: ParseFencedActions(reply)}
		}, nil
	default:
		return nil, fmt.Errorf("unknown reply grammar %q", grammar)
	}
}
