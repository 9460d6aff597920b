// Package template scans strings for {{name}} tokens, substitutes them from
// lookup contexts and rewrites decoded responses back into token form.
package template

import (
	"regexp"
	"strings"

	"github.com/postnome/postnome/internal/tree"
)

var tokenPattern = regexp.MustCompile(`\{\{(.*?)\}\}`)

// Token is one {{inner}} occurrence; Start and End are byte offsets of the
// whole token including braces.
type Token struct {
	Start int
	End   int
	Inner string
}

// Tokens returns every token in s, left to right.
func Tokens(s string) []Token {
	matches := tokenPattern.FindAllStringSubmatchIndex(s, -1)
	out := make([]Token, 0, len(matches))
	for _, m := range matches {
		out = append(out, Token{Start: m[0], End: m[1], Inner: s[m[2]:m[3]]})
	}
	return out
}

// Names returns the distinct token names of s in order of first appearance.
func Names(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range Tokens(s) {
		if seen[tok.Inner] {
			continue
		}
		seen[tok.Inner] = true
		out = append(out, tok.Inner)
	}
	return out
}

// Wrap returns key in token form.
func Wrap(key string) string {
	return "{{" + key + "}}"
}

// Context resolves a token name to a value.
type Context interface {
	Lookup(key string) (string, bool)
}

// MapContext is a Context backed by a plain map.
type MapContext map[string]string

func (m MapContext) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Binder creates variables for tokens no context knows about.
type Binder interface {
	GetOrCreate(name string) string
}

// Options control Contextualize. Left and Right wrap every substituted value.
// When Bind is set, unknown tokens are registered through it; otherwise they
// are replaced by Default.
type Options struct {
	Left    string
	Right   string
	Default string
	Bind    Binder
}

// Contextualize replaces every token of s with the value from the first
// context that knows it. It returns the rewritten string and the names that
// no context resolved, in order of appearance. Substituted text is never
// scanned again.
func Contextualize(s string, contexts []Context, opts Options) (string, []string) {
	tokens := Tokens(s)
	if len(tokens) == 0 {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	var missing []string
	last := 0
	for _, tok := range tokens {
		b.WriteString(s[last:tok.Start])
		value, ok := lookup(contexts, tok.Inner)
		if !ok {
			missing = append(missing, tok.Inner)
			if opts.Bind != nil {
				value = opts.Bind.GetOrCreate(tok.Inner)
			} else {
				value = opts.Default
			}
		}
		b.WriteString(opts.Left)
		b.WriteString(value)
		b.WriteString(opts.Right)
		last = tok.End
	}
	b.WriteString(s[last:])
	return b.String(), missing
}

func lookup(contexts []Context, key string) (string, bool) {
	for _, c := range contexts {
		if c == nil {
			continue
		}
		if v, ok := c.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// Mode selects what Decontextualize matches against.
type Mode int

const (
	// ByValue replaces scalar values equal to a lookup key.
	ByValue Mode = iota
	// ByKey renames map keys equal to a lookup key.
	ByKey
)

// Index maps a literal key to the identifiers it stands for, in insertion
// order.
type Index map[string][]string

// Decontextualize returns a copy of v where every match found in contexts is
// replaced by the wrapped identifier. When a key maps to several identifiers
// the first one wins.
func Decontextualize(v tree.Value, contexts []Index, mode Mode) tree.Value {
	resolve := func(key string) (string, bool) {
		if key == "" {
			return "", false
		}
		for _, idx := range contexts {
			if ids := idx[key]; len(ids) > 0 {
				return ids[0], true
			}
		}
		return "", false
	}

	if mode == ByKey {
		return tree.RenameKeys(v, func(key string) (string, bool) {
			id, ok := resolve(key)
			if !ok {
				return "", false
			}
			return Wrap(id), true
		})
	}
	return tree.ReplaceScalars(v, func(s tree.Value) (tree.Value, bool) {
		if s.Kind() != tree.String && s.Kind() != tree.Number {
			return tree.Value{}, false
		}
		id, ok := resolve(s.Text())
		if !ok {
			return tree.Value{}, false
		}
		return tree.StringValue(Wrap(id)), true
	})
}
