package server

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/asaidimu/go-restful/utils"
)

// Converter turns a path variable into a typed value. A value it rejects
// makes the route answer 404.
type Converter struct {
	// Pattern is the regular expression the router matches the variable with.
	Pattern string
	Convert func(raw string) (any, bool)
}

// UUIDConverter accepts hyphenated or plain UUIDs and yields 32 hex characters.
var UUIDConverter = Converter{
	Pattern: `[0-9a-fA-F]{8}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{12}`,
	Convert: func(raw string) (any, bool) {
		return utils.NormalizeUUID(raw)
	},
}

// IntConverter accepts integers in [0, MaxInt64].
var IntConverter = Converter{
	Pattern: `[0-9]+`,
	Convert: func(raw string) (any, bool) {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	},
}

func defaultConverters() map[string]Converter {
	return map[string]Converter{
		"uuid": UUIDConverter,
		"int":  IntConverter,
	}
}

var variable = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*):([A-Za-z_][A-Za-z0-9_]*)\}`)

// compileTemplate replaces converter names with their patterns and returns
// the converter of each variable.
func compileTemplate(template string, converters map[string]Converter) (string, map[string]Converter, error) {
	bound := make(map[string]Converter)
	var missing string
	out := variable.ReplaceAllStringFunc(template, func(m string) string {
		parts := variable.FindStringSubmatch(m)
		conv, ok := converters[parts[2]]
		if !ok {
			missing = parts[2]
			return m
		}
		bound[parts[1]] = conv
		return "{" + parts[1] + ":" + conv.Pattern + "}"
	})
	if missing != "" {
		return "", nil, &RouteError{Template: template, Err: fmt.Errorf("%w: unknown converter %q", ErrInvalidTemplate, missing)}
	}
	return out, bound, nil
}

type valuesKey struct{}

// PathValues returns the converted path variables of a request. Variables
// without a converter are strings.
func PathValues(r *http.Request) map[string]any {
	if v, ok := r.Context().Value(valuesKey{}).(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

func withPathValues(ctx context.Context, values map[string]any) context.Context {
	return context.WithValue(ctx, valuesKey{}, values)
}
