package expressions

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/emarren/vaultflow/pkg/schema"
)

// ConditionEvaluator evaluates "<left> <op> <right>" comparisons used by the
// if and while node types. Both operands are templates; the operator token is
// located outside template braces so values containing comparison characters
// do not split the expression.
//
// Malformed conditions never fail the run: they evaluate to false and emit a
// diagnostic.
type ConditionEvaluator struct {
	templates *TemplateEngine
}

// NewConditionEvaluator creates a condition evaluator over the given
// template engine.
func NewConditionEvaluator(templates *TemplateEngine) *ConditionEvaluator {
	return &ConditionEvaluator{templates: templates}
}

const opContains = "contains"

// twoCharOps are matched before their single-char prefixes.
var twoCharOps = []string{"==", "!=", "<=", ">="}

// Evaluate resolves both operands against the scope and applies the
// operator. Returns the outcome and any diagnostics produced by parsing or
// template resolution.
func (c *ConditionEvaluator) Evaluate(raw string, scope map[string]any) (bool, []string) {
	left, op, right, err := splitCondition(raw)
	if err != nil {
		return false, []string{fmt.Sprintf("%s: %s", schema.DiagConditionParse, err.Error())}
	}

	var diags []string
	lv, ld := c.resolveOperand(left, scope)
	rv, rd := c.resolveOperand(right, scope)
	diags = append(diags, ld...)
	diags = append(diags, rd...)

	return compare(lv, op, rv), diags
}

// resolveOperand resolves one side of a condition. An operand that is exactly
// one template yields the referenced value unconverted, so array membership
// and numeric comparison see the real value rather than its JSON text.
func (c *ConditionEvaluator) resolveOperand(operand string, scope map[string]any) (any, []string) {
	return c.templates.ResolveValue(operand, scope)
}

// splitCondition locates the leftmost operator token at template depth zero
// and splits the expression around it.
func splitCondition(raw string) (left, op, right string, err error) {
	depth := 0
	i := 0
	for i < len(raw) {
		if i < len(raw)-1 {
			if raw[i] == '{' && raw[i+1] == '{' {
				depth++
				i += 2
				continue
			}
			if raw[i] == '}' && raw[i+1] == '}' {
				if depth > 0 {
					depth--
				}
				i += 2
				continue
			}
		}
		if depth == 0 {
			if tok, width := operatorAt(raw, i); tok != "" {
				left = strings.TrimSpace(raw[:i])
				right = strings.TrimSpace(raw[i+width:])
				if left == "" || right == "" {
					return "", "", "", fmt.Errorf("condition %q: missing operand around %q", raw, tok)
				}
				return left, tok, right, nil
			}
		}
		i++
	}
	return "", "", "", fmt.Errorf("condition %q: no comparison operator found", raw)
}

// operatorAt reports the operator token starting at raw[i], if any, and the
// number of bytes it occupies in the source text.
func operatorAt(raw string, i int) (string, int) {
	for _, op := range twoCharOps {
		if strings.HasPrefix(raw[i:], op) {
			return op, len(op)
		}
	}
	if strings.HasPrefix(raw[i:], opContains) {
		before := i == 0 || isSpace(raw[i-1])
		afterIdx := i + len(opContains)
		after := afterIdx >= len(raw) || isSpace(raw[afterIdx])
		if before && after {
			return opContains, len(opContains)
		}
	}
	if raw[i] == '<' || raw[i] == '>' {
		return string(raw[i]), 1
	}
	return "", 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// compare applies the operator. Ordering and equality compare numerically
// when both sides are numeric, and as strings otherwise.
func compare(left any, op string, right any) bool {
	if op == opContains {
		return containsValue(left, right)
	}

	lf, lok := toNumber(left)
	rf, rok := toNumber(right)
	if lok && rok {
		switch op {
		case "==":
			return lf == rf
		case "!=":
			return lf != rf
		case "<":
			return lf < rf
		case ">":
			return lf > rf
		case "<=":
			return lf <= rf
		case ">=":
			return lf >= rf
		}
	}

	ls, rs := Stringify(left), Stringify(right)
	switch op {
	case "==":
		return ls == rs
	case "!=":
		return ls != rs
	case "<":
		return ls < rs
	case ">":
		return ls > rs
	case "<=":
		return ls <= rs
	case ">=":
		return ls >= rs
	}
	return false
}

// containsValue implements the contains operator: element membership for
// arrays, key presence for objects, substring for everything else.
func containsValue(left, right any) bool {
	switch l := left.(type) {
	case []any:
		for _, elem := range l {
			if valueEqual(elem, right) {
				return true
			}
		}
		return false
	case map[string]any:
		_, ok := l[Stringify(right)]
		return ok
	default:
		return strings.Contains(Stringify(left), Stringify(right))
	}
}

func valueEqual(a, b any) bool {
	af, aok := toNumber(a)
	bf, bok := toNumber(b)
	if aok && bok {
		return af == bf
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	return Stringify(a) == Stringify(b)
}

// toNumber converts numeric values and numeric-looking strings to float64.
func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
