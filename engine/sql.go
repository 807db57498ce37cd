package engine

import (
	"fmt"
	"strings"

	"github.com/RinkuLib/RinkuLib/dialect"
	"github.com/RinkuLib/RinkuLib/template"
)

// translate rewrites prefix-named parameters in a rendered statement into
// driver placeholders, resolving values from spread bindings first and the
// caller's parameter map second. String literals and comments pass through
// untouched.
func translate(sql string, prefix byte, binds []template.Binding, params map[string]any, d dialect.Dialect) (string, []any, error) {
	spread := make(map[string]any, len(binds))
	for _, b := range binds {
		if b.Role == template.RoleSpread {
			spread[strings.ToLower(b.Name)] = b.Value
		}
	}
	folded := make(map[string]any, len(params))
	for k, v := range params {
		folded[strings.ToLower(k)] = v
	}

	var sb strings.Builder
	sb.Grow(len(sql) + 16)
	args := make([]any, 0, len(binds))
	n := 0

	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '\'':
			j := skipString(sql, i)
			sb.WriteString(sql[i:j])
			i = j
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			j := skipComment(sql, i)
			sb.WriteString(sql[i:j])
			i = j
		case c == prefix && i+1 < len(sql) && isNameStart(sql[i+1]):
			j := i + 1
			for j < len(sql) && isNamePart(sql[j]) {
				j++
			}
			name := sql[i+1 : j]
			key := strings.ToLower(name)
			val, ok := spread[key]
			if !ok {
				val, ok = folded[key]
			}
			if !ok {
				return "", nil, fmt.Errorf("missing value for parameter %c%s", prefix, name)
			}
			n++
			sb.WriteString(d.Placeholder(n))
			args = append(args, val)
			i = j
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), args, nil
}

func skipString(sql string, i int) int {
	i++ // opening quote
	for i < len(sql) {
		if sql[i] == '\'' {
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

func skipComment(sql string, i int) int {
	if end := strings.Index(sql[i+2:], "*/"); end >= 0 {
		return i + 2 + end + 2
	}
	return len(sql)
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNamePart(c byte) bool { return isNameStart(c) || (c >= '0' && c <= '9') }
