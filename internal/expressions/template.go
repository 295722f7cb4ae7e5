package expressions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/emarren/vaultflow/pkg/schema"
)

// TemplateEngine resolves {{path}} references against a run scope.
//
// Path grammar: an identifier followed by dotted field access and bracket
// indexing, e.g. {{items[0].name}} or {{row["full name"]}}. Templates may
// nest: {{items[{{idx}}]}} resolves the inner template first and uses its
// text as part of the outer path.
//
// Substituted output is never re-scanned. Resolving already resolved text is
// a no-op, and values containing template syntax are inserted literally.
type TemplateEngine struct{}

// NewTemplateEngine creates a template engine.
func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{}
}

// Resolve substitutes every template in text. Missing or invalid paths
// resolve to the empty string and produce a diagnostic; resolution itself
// never fails.
func (t *TemplateEngine) Resolve(text string, scope map[string]any) (string, []string) {
	var diags []string
	out := t.resolve(text, scope, &diags)
	return out, diags
}

// ResolveValue is like Resolve, except when text is exactly one template:
// then the referenced value is returned unconverted, so handlers can receive
// arrays and objects instead of their JSON text.
func (t *TemplateEngine) ResolveValue(text string, scope map[string]any) (any, []string) {
	var diags []string
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{{") {
		inner, end, ok := matchTemplate(trimmed, 0)
		if ok && end == len(trimmed) {
			expr := t.resolve(inner, scope, &diags)
			val, err := evalPath(strings.TrimSpace(expr), scope)
			if err != nil {
				diags = append(diags, templateDiag(err))
				return "", diags
			}
			return val, diags
		}
	}
	out := t.resolve(text, scope, &diags)
	return out, diags
}

func (t *TemplateEngine) resolve(text string, scope map[string]any, diags *[]string) string {
	var b strings.Builder
	i := 0
	for i < len(text) {
		rel := strings.Index(text[i:], "{{")
		if rel < 0 {
			b.WriteString(text[i:])
			break
		}
		open := i + rel
		b.WriteString(text[i:open])

		inner, end, ok := matchTemplate(text, open)
		if !ok {
			*diags = append(*diags, fmt.Sprintf("%s: unterminated template at offset %d", schema.DiagTemplateWarning, open))
			b.WriteString(text[open:])
			break
		}

		// Inner templates resolve first so their text can form the outer path.
		expr := t.resolve(inner, scope, diags)
		val, err := evalPath(strings.TrimSpace(expr), scope)
		if err != nil {
			*diags = append(*diags, templateDiag(err))
		} else {
			b.WriteString(Stringify(val))
		}
		i = end
	}
	return b.String()
}

func templateDiag(err error) string {
	return fmt.Sprintf("%s: %s", schema.DiagTemplateWarning, err.Error())
}

// matchTemplate finds the close of the template opening at text[open:],
// counting nested {{ }} pairs. Returns the inner expression, the offset just
// past the closing braces, and whether a close was found.
func matchTemplate(text string, open int) (inner string, end int, ok bool) {
	depth := 0
	i := open
	for i < len(text)-1 {
		switch {
		case text[i] == '{' && text[i+1] == '{':
			depth++
			i += 2
		case text[i] == '}' && text[i+1] == '}':
			depth--
			if depth == 0 {
				return text[open+2 : i], i + 2, true
			}
			i += 2
		default:
			i++
		}
	}
	return "", 0, false
}

// Stringify converts a scope value to its template substitution text.
// Scalars render plainly; arrays and objects render as compact JSON.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

type pathSegment struct {
	key     string
	index   int
	isIndex bool
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '-' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func parsePath(expr string) ([]pathSegment, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty path")
	}

	var segs []pathSegment
	i := 0
	readIdent := func() (string, bool) {
		start := i
		for i < len(expr) && isIdentChar(expr[i]) {
			i++
		}
		if i == start {
			return "", false
		}
		return expr[start:i], true
	}

	ident, ok := readIdent()
	if !ok {
		return nil, fmt.Errorf("invalid path %q: must start with an identifier", expr)
	}
	segs = append(segs, pathSegment{key: ident})

	for i < len(expr) {
		switch expr[i] {
		case '.':
			i++
			id, ok := readIdent()
			if !ok {
				return nil, fmt.Errorf("invalid path %q: expected identifier after '.'", expr)
			}
			segs = append(segs, pathSegment{key: id})
		case '[':
			i++
			if i < len(expr) && (expr[i] == '"' || expr[i] == '\'') {
				quote := expr[i]
				i++
				start := i
				for i < len(expr) && expr[i] != quote {
					i++
				}
				if i >= len(expr) {
					return nil, fmt.Errorf("invalid path %q: unterminated string key", expr)
				}
				key := expr[start:i]
				i++
				if i >= len(expr) || expr[i] != ']' {
					return nil, fmt.Errorf("invalid path %q: expected ']' after string key", expr)
				}
				i++
				segs = append(segs, pathSegment{key: key})
			} else {
				start := i
				for i < len(expr) && expr[i] != ']' {
					i++
				}
				if i >= len(expr) {
					return nil, fmt.Errorf("invalid path %q: unterminated index", expr)
				}
				n, err := strconv.Atoi(strings.TrimSpace(expr[start:i]))
				if err != nil {
					return nil, fmt.Errorf("invalid path %q: index must be an integer", expr)
				}
				i++
				segs = append(segs, pathSegment{index: n, isIndex: true})
			}
		default:
			return nil, fmt.Errorf("invalid path %q: unexpected character %q", expr, expr[i])
		}
	}
	return segs, nil
}

// evalPath resolves a path expression against the scope. The first segment
// is a variable name; the rest walk into the bound value.
func evalPath(expr string, scope map[string]any) (any, error) {
	segs, err := parsePath(expr)
	if err != nil {
		return nil, err
	}

	cur, ok := scope[segs[0].key]
	if !ok {
		return nil, fmt.Errorf("variable %q is not defined", segs[0].key)
	}

	for _, seg := range segs[1:] {
		if seg.isIndex {
			arr, ok := cur.([]any)
			if !ok {
				return nil, fmt.Errorf("path %q: cannot index into non-array value", expr)
			}
			if seg.index < 0 || seg.index >= len(arr) {
				return nil, fmt.Errorf("path %q: index %d out of range (length %d)", expr, seg.index, len(arr))
			}
			cur = arr[seg.index]
			continue
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path %q: cannot access field %q on non-object value", expr, seg.key)
		}
		cur, ok = obj[seg.key]
		if !ok {
			return nil, fmt.Errorf("path %q: field %q not found", expr, seg.key)
		}
	}
	return cur, nil
}
