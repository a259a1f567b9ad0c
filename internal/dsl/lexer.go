// Package dsl implements the hand-written tokenizer, recursive-descent
// parser, and expander for the musical DSL described in SPEC_FULL.md §4.3.
//
// The grammar is irregular (scale/chord sugar, nested brackets, per-note
// array randomizers) so this is a hand-written scanner over balanced
// parentheses/angle-brackets/braces rather than a single regular
// expression or a parser-generator grammar.
package dsl

import "strings"

// collapseWhitespace implements expansion step (i): any run of whitespace
// becomes a single space, and leading/trailing whitespace is trimmed. This
// makes the grammar whitespace-insensitive without destroying the space
// that separates sibling atoms inside a block.
func collapseWhitespace(s string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !inSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// splitTopLevel splits s on sep, ignoring any sep that occurs inside
// balanced (), <>, {} nesting. Empty fields are dropped.
func splitTopLevel(s string, sep byte) []string {
	var fields []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '<', '{':
			depth++
		case ')', '>', '}':
			if depth > 0 {
				depth--
			}
		default:
			if s[i] == sep && depth == 0 {
				if f := s[start:i]; f != "" {
					fields = append(fields, f)
				}
				start = i + 1
			}
		}
	}
	if f := s[start:]; f != "" {
		fields = append(fields, f)
	}
	return fields
}

// splitAtoms splits a block's inner content into individual top-level
// atoms (separated by whitespace, each atom itself possibly containing
// nested parens/angle-brackets).
func splitAtoms(s string) []string {
	return splitTopLevel(s, ' ')
}

// matchBalanced scans s starting at i (which must be an opening char open)
// and returns the index just past the matching close, or -1 if unbalanced.
func matchBalanced(s string, i int, open, close byte) int {
	if i >= len(s) || s[i] != open {
		return -1
	}
	depth := 0
	for ; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// extractCall finds the first occurrence of name immediately followed by
// a balanced "(...)" starting at or after offset, returning the argument
// string (without parens) and the index just past the closing paren. ok
// is false if no such call is found.
func extractCall(s, name string, offset int) (args string, end int, ok bool) {
	for i := offset; i < len(s); i++ {
		idx := strings.Index(s[i:], name+"(")
		if idx == -1 {
			return "", 0, false
		}
		start := i + idx + len(name)
		close := matchBalanced(s, start, '(', ')')
		if close == -1 {
			i = start + 1
			continue
		}
		return s[start+1 : close-1], close, true
	}
	return "", 0, false
}

// dotCall is one ".name(args)" (or bare ".name" with no parens, e.g. the
// trailing ".stop" form) link in a dot-chain.
type dotCall struct {
	name string
	args string
}

// parseDotChain reads a leading ".mod(args).mod2(args2)" chain from s and
// returns the parsed calls plus how many bytes of s were consumed, so the
// caller can keep scanning the remainder (e.g. the next "[" block, or the
// next top-level atom). s must start right after the primary construct
// (e.g. right after "n(60)" or "t(id)").
func parseDotChain(s string) ([]dotCall, int) {
	var out []dotCall
	i := 0
	for i < len(s) {
		if s[i] != '.' {
			break
		}
		i++
		nameStart := i
		for i < len(s) && s[i] != '(' && s[i] != '.' {
			i++
		}
		name := s[nameStart:i]
		args := ""
		if i < len(s) && s[i] == '(' {
			close := matchBalanced(s, i, '(', ')')
			if close == -1 {
				i = nameStart
				break
			}
			args = s[i+1 : close-1]
			i = close
		}
		out = append(out, dotCall{name: name, args: args})
	}
	return out, i
}
