package aur

import (
	"strings"
)

// ExtractRecipe scans PKGBUILD text for array assignments of the requested
// fields (`depends=(...)`, `makedepends+=(...)`, ...) and returns, per field,
// the ordered, duplicate-free list of entries.
//
// Array bodies may span lines and contain nested parentheses; the scan keeps a
// depth count and ignores parentheses inside quotes. Entries are split on
// whitespace, with single or double quotes grouping and then stripped.
// Comments and line-continuation backslashes are dropped.
//
// For optdepends, entries keep their "name: description" text and are
// deduplicated by name. For every other field, strip removes version
// constraints ("foo>=1.2" becomes "foo"); with strip false the entry is kept
// as written. Duplicates are detected on the bare name; the first wins.
func ExtractRecipe(text string, fields Field, strip bool) map[Field][]string {
	out := make(map[Field][]string)
	seen := make(map[Field]map[string]struct{})

	for pos := 0; pos < len(text); {
		end := strings.IndexByte(text[pos:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += pos
		}
		line := text[pos:end]
		next := end + 1

		if f, open, ok := matchAssignment(line, fields); ok {
			start := pos + open + 1
			body, stop := scanArray(text, start)
			addEntries(out, seen, f, tokenize(body), strip)
			if nl := strings.IndexByte(text[stop:], '\n'); nl >= 0 {
				next = stop + nl + 1
			} else {
				next = len(text)
			}
		}
		pos = next
	}
	return out
}

// ApplyRecipe fills the requested dependency lists of p from PKGBUILD text.
// Lists for fields the recipe does not assign are left untouched.
func (p *Package) ApplyRecipe(text string, fields Field, strip bool) {
	for f, entries := range ExtractRecipe(text, fields, strip) {
		if l := p.List(f); l != nil {
			*l = entries
		}
	}
}

// matchAssignment reports whether line starts an array assignment for one of
// fields, returning the field and the index of the opening parenthesis.
func matchAssignment(line string, fields Field) (Field, int, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	indent := len(line) - len(trimmed)

	for _, fn := range fieldNames {
		if fields&fn.field == 0 || !strings.HasPrefix(trimmed, fn.name) {
			continue
		}
		rest := trimmed[len(fn.name):]
		op := 0
		switch {
		case strings.HasPrefix(rest, "=("):
			op = 1
		case strings.HasPrefix(rest, "+=("):
			op = 2
		default:
			continue
		}
		return fn.field, indent + len(fn.name) + op, true
	}
	return 0, 0, false
}

// scanArray returns the body of an array whose opening parenthesis sits just
// before start, and the index of the matching closing parenthesis. An
// unterminated array runs to the end of text.
func scanArray(text string, start int) (string, int) {
	depth := 1
	var quote byte
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else if c == '\\' && quote == '"' && i+1 < len(text) {
				i++
			}
		case c == '\\' && i+1 < len(text) && text[i+1] != '\n':
			i++
		case c == '\'' || c == '"':
			quote = c
		case c == '#' && (i == start || isSpace(text[i-1])):
			if nl := strings.IndexByte(text[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(text) - 1
			}
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return text[start:i], i
			}
		}
	}
	return text[start:], len(text)
}

// tokenize splits an array body on unquoted whitespace, stripping quotes and
// dropping comments.
func tokenize(body string) []string {
	var (
		tokens []string
		cur    strings.Builder
		quote  byte
		inTok  bool
	)
	flush := func() {
		if inTok {
			tokens = append(tokens, cur.String())
		}
		cur.Reset()
		inTok = false
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inTok = true
		case isSpace(c):
			flush()
		case c == '#' && !inTok:
			for i < len(body) && body[i] != '\n' {
				i++
			}
		default:
			cur.WriteByte(c)
			inTok = true
		}
	}
	flush()
	return tokens
}

func addEntries(out map[Field][]string, seen map[Field]map[string]struct{}, f Field, tokens []string, strip bool) {
	if seen[f] == nil {
		seen[f] = make(map[string]struct{})
	}
	for _, tok := range tokens {
		if tok == "" || tok == `\` {
			continue
		}

		var key, val string
		if f == FieldOptDepends {
			name, _, _ := strings.Cut(tok, ":")
			key, val = strings.TrimSpace(name), tok
		} else {
			key, val = StripVersion(tok), tok
			if strip {
				val = key
			}
		}
		if key == "" {
			continue
		}
		if _, dup := seen[f][key]; dup {
			continue
		}
		seen[f][key] = struct{}{}
		out[f] = append(out[f], val)
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
