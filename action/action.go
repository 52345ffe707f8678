// Package action models the structured instructions extracted from model replies
// and the grammars that extract them.
//
// Information Hiding:
// - Tag scanning and fenced-block matching hidden behind Parse/ParseFenced
// - Callers see only the closed set of Kinds
package action

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of actions a reply can request.
type Kind int

const (
	// KindNone means the reply contained no recognised action.
	KindNone Kind = iota
	// KindBash runs one allow-listed shell command.
	KindBash
	// KindModify overwrites an existing file.
	KindModify
	// KindAnalyze carries analysis text.
	KindAnalyze
	// KindInfo carries plain information for the user.
	KindInfo
	// KindGettingInfo lists commands whose output feeds the next turn.
	KindGettingInfo
)

var kindNames = map[Kind]string{
	KindNone:        "none",
	KindBash:        "bash",
	KindModify:      "modify",
	KindAnalyze:     "analyze",
	KindInfo:        "info",
	KindGettingInfo: "getting_info",
}

// String returns the lower-case action name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Tag returns the upper-case block tag for k, or "" for KindNone.
func (k Kind) Tag() string {
	if k == KindNone {
		return ""
	}
	return strings.ToUpper(k.String())
}

// KindFromName maps a lower-cased tag name to a Kind.
func KindFromName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if k != KindNone && n == name {
			return k, true
		}
	}
	return KindNone, false
}

// ErrModifyMalformed marks a MODIFY block whose body is not
// "FILE: <path>\n---\n<content>".
var ErrModifyMalformed = errors.New("malformed MODIFY block")

// Action is a single instruction extracted from a reply.
type Action struct {
	Kind     Kind
	Content  string // trimmed body; new file content for modify
	FilePath string // modify only
	Err      error  // non-nil when the block was recognised but unusable
}

// None is the action produced for replies without any recognised block.
func None() Action {
	return Action{Kind: KindNone}
}

// Commands splits a getting_info body into its non-blank command lines.
func (a Action) Commands() []string {
	var cmds []string
	for _, line := range strings.Split(a.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			cmds = append(cmds, line)
		}
	}
	return cmds
}

// String returns a short description for logs.
func (a Action) String() string {
	switch {
	case a.Err != nil:
		return fmt.Sprintf("%s(error: %v)", a.Kind, a.Err)
	case a.Kind == KindModify:
		return fmt.Sprintf("modify(%s, %d bytes)", a.FilePath, len(a.Content))
	case a.Kind == KindNone:
		return "none"
	default:
		return fmt.Sprintf("%s(%q)", a.Kind, truncate(a.Content, 60))
	}
}

// Format renders a in tag syntax. Parse(Format(a)) recovers a.
func Format(a Action) string {
	if a.Kind == KindNone {
		return ""
	}
	tag := a.Kind.Tag()
	body := a.Content
	if a.Kind == KindModify {
		body = "FILE: " + a.FilePath + "\n---\n" + a.Content
	}
	return "[" + tag + "]\n" + body + "\n[/" + tag + "]"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
