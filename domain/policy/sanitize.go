// Package policy holds the pure decision functions every graph and schema
// operation passes through: identifier sanitization, the authorization table
// and traversal bounds.
package policy

import (
	"fmt"
	"regexp"
	"time"

	"github.com/emergent-company/erm/pkg/apperror"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SanitizeIdentifier accepts names that may appear as query-language tokens
// (labels, relationship types, property keys). Everything else is rejected.
func SanitizeIdentifier(name string) (string, error) {
	if !identifierRe.MatchString(name) {
		return "", apperror.ErrInvalidIdentifier.
			WithMessage(fmt.Sprintf("invalid identifier %q", name)).
			WithDetails(map[string]any{"identifier": name})
	}
	return name, nil
}

// IsIdentifier reports whether name would pass SanitizeIdentifier.
func IsIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

// SanitizeValue converts v into a form the graph driver accepts as a bound
// parameter. Values never reach query text, so no escaping happens here;
// only the shape is normalized (typed slices and maps flattened, times in UTC).
func SanitizeValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64, float64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC()
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = SanitizeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = SanitizeValue(e)
		}
		return out
	default:
		return x
	}
}
