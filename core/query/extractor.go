package query

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/asaidimu/go-restful/core"
)

// Reserved query keys.
const (
	LimitField    = "__limit"
	OffsetField   = "__offset"
	OrderField    = "__order"
	AndField      = "__and"
	OrField       = "__or"
	InField       = "__in"
	NotInField    = "__not_in"
	EqualField    = "__eq"
	NotEqualField = "__ne"
	GreaterField  = "__gt"
	LessField     = "__lt"
	GreaterEqual  = "__ge"
	LessEqual     = "__le"
	LikeField     = "__like"
	ILikeField    = "__ilike"
	MatchField    = "__match"
)

// Separator splits the segments of a reserved parameter value.
const Separator = ","

// Param is a single key/value pair from a query string.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of query parameters.
type Params []Param

// ParamGroup holds every value of one key in request order.
type ParamGroup struct {
	Key    string
	Values []string
}

// ParseParams splits a raw query string keeping the request order, which
// url.ParseQuery discards.
func ParseParams(raw string) (Params, error) {
	var params Params
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, &core.InvalidParameterError{Field: k, Message: "malformed escape sequence in key"}
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, &core.InvalidParameterError{Field: key, Message: "malformed escape sequence in value"}
		}
		if key == "" {
			continue
		}
		params = append(params, Param{Key: key, Value: value})
	}
	return params, nil
}

// ParamsFromValues converts url.Values. Keys are sorted since map order is
// lost; values keep their order within a key.
func ParamsFromValues(values url.Values) Params {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var params Params
	for _, k := range keys {
		for _, v := range values[k] {
			params = append(params, Param{Key: k, Value: v})
		}
	}
	return params
}

// Extractor turns every value of a reserved key into plan components.
type Extractor func(key string, values []string, plan *PlanBuilder) error

// Registry maps reserved keys to extractors. Keys not in the registry are
// handled by the fallback, which produces equality filters by default.
type Registry struct {
	extractors map[string]Extractor
	fallback   Extractor
}

// NewRegistry returns an empty registry whose fallback builds equality filters.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[string]Extractor),
		fallback:   extractEquality,
	}
}

// DefaultRegistry returns a registry populated with the built-in extractors.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	RegisterDefaultExtractors(reg)
	return reg
}

// Register binds an extractor to a reserved key. Keys are matched case-insensitively.
func (r *Registry) Register(key string, ex Extractor) {
	r.extractors[strings.ToLower(key)] = ex
}

// SetFallback replaces the extractor used for unreserved keys.
func (r *Registry) SetFallback(ex Extractor) {
	r.fallback = ex
}

// Lookup returns the extractor registered for key.
func (r *Registry) Lookup(key string) (Extractor, bool) {
	ex, ok := r.extractors[strings.ToLower(key)]
	return ex, ok
}

// IsReserved reports whether key has a registered extractor.
func (r *Registry) IsReserved(key string) bool {
	_, ok := r.Lookup(key)
	return ok
}

// Group collects values by key in first-occurrence order. Reserved keys are
// folded to lower case; other keys keep their case.
func (r *Registry) Group(params Params) []ParamGroup {
	var groups []ParamGroup
	index := make(map[string]int)
	for _, p := range params {
		key := p.Key
		if r.IsReserved(key) {
			key = strings.ToLower(key)
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, ParamGroup{Key: key})
		}
		groups[i].Values = append(groups[i].Values, p.Value)
	}
	return groups
}

// Extract builds a plan from the given parameters.
func (r *Registry) Extract(params Params) (*QueryPlan, error) {
	pb := NewPlanBuilder()
	for _, g := range r.Group(params) {
		ex, ok := r.Lookup(g.Key)
		if !ok {
			ex = r.fallback
		}
		if err := ex(g.Key, g.Values, pb); err != nil {
			return nil, err
		}
		if err := pb.Err(); err != nil {
			return nil, &core.InvalidParameterError{Field: g.Key, Message: err.Error()}
		}
	}
	return pb.Build()
}

// RegisterDefaultExtractors installs the built-in reserved keys.
func RegisterDefaultExtractors(r *Registry) {
	r.Register(LimitField, windowExtractor(func(pb *PlanBuilder, v int64) { pb.Limit(v) }))
	r.Register(OffsetField, windowExtractor(func(pb *PlanBuilder, v int64) { pb.Offset(v) }))
	r.Register(OrderField, extractOrder)
	r.Register(AndField, compositeExtractor(LogicalOperatorAnd))
	r.Register(OrField, compositeExtractor(LogicalOperatorOr))
	r.Register(InField, membershipExtractor(ComparisonOperatorIn))
	r.Register(NotInField, membershipExtractor(ComparisonOperatorNotIn))
	r.Register(EqualField, binaryExtractor(ComparisonOperatorEq))
	r.Register(NotEqualField, binaryExtractor(ComparisonOperatorNe))
	r.Register(GreaterField, binaryExtractor(ComparisonOperatorGt))
	r.Register(LessField, binaryExtractor(ComparisonOperatorLt))
	r.Register(GreaterEqual, binaryExtractor(ComparisonOperatorGe))
	r.Register(LessEqual, binaryExtractor(ComparisonOperatorLe))
	r.Register(LikeField, binaryExtractor(ComparisonOperatorLike))
	r.Register(ILikeField, binaryExtractor(ComparisonOperatorILike))
	r.Register(MatchField, binaryExtractor(ComparisonOperatorMatch))
}

func invalid(key, format string, args ...any) error {
	return &core.InvalidParameterError{Field: key, Message: fmt.Sprintf(format, args...)}
}

func segments(key, value string, min, max int) ([]string, error) {
	parts := strings.Split(value, Separator)
	if len(parts) < min || len(parts) > max {
		if max == math.MaxInt {
			return nil, invalid(key, "%q must have at least %d segments, got %d", value, min, len(parts))
		}
		if min == max {
			return nil, invalid(key, "%q must have exactly %d segments, got %d", value, min, len(parts))
		}
		return nil, invalid(key, "%q must have %d to %d segments, got %d", value, min, max, len(parts))
	}
	return parts, nil
}

// windowExtractor parses limit and offset. The last occurrence wins.
func windowExtractor(apply func(*PlanBuilder, int64)) Extractor {
	return func(key string, values []string, pb *PlanBuilder) error {
		var last int64
		for _, v := range values {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
					return invalid(key, "%s is not in [0, %d]", v, int64(math.MaxInt64))
				}
				return invalid(key, "%s is not an integer", v)
			}
			if n < 0 {
				return invalid(key, "%s is not in [0, %d]", v, int64(math.MaxInt64))
			}
			last = n
		}
		if len(values) > 0 {
			apply(pb, last)
		}
		return nil
	}
}

func extractOrder(key string, values []string, pb *PlanBuilder) error {
	for _, v := range values {
		parts, err := segments(key, v, 1, 2)
		if err != nil {
			return err
		}
		direction := SortDirectionDesc
		if len(parts) == 2 && parts[1] != "" {
			switch SortDirection(parts[1]) {
			case SortDirectionAsc:
				direction = SortDirectionAsc
			case SortDirectionDesc:
			default:
				return invalid(key, "%s is not in (desc, asc)", parts[1])
			}
		}
		if parts[0] == "" {
			return invalid(key, "%q does not name a field", v)
		}
		pb.OrderBy(parts[0], direction)
	}
	return nil
}

func compositeExtractor(op LogicalOperator) Extractor {
	return func(key string, values []string, pb *PlanBuilder) error {
		children := make([]QueryFilter, 0, len(values))
		for _, v := range values {
			parts, err := segments(key, v, 3, 3)
			if err != nil {
				return err
			}
			operator := ComparisonOperator(strings.ToLower(parts[2]))
			if operator == "" {
				operator = ComparisonOperatorEq
			}
			if !operator.IsScalar() {
				return invalid(key, "%s is not in %v", parts[2], ScalarOperators())
			}
			if parts[0] == "" {
				return invalid(key, "%q does not name a field", v)
			}
			children = append(children, Where(operator, parts[0], parts[1]))
		}
		if len(children) == 0 {
			return invalid(key, "requires at least one value")
		}
		pb.Filter(group(op, children))
		return nil
	}
}

func membershipExtractor(op ComparisonOperator) Extractor {
	return func(key string, values []string, pb *PlanBuilder) error {
		for _, v := range values {
			parts, err := segments(key, v, 2, math.MaxInt)
			if err != nil {
				return err
			}
			if parts[0] == "" {
				return invalid(key, "%q does not name a field", v)
			}
			set := make([]FilterValue, 0, len(parts)-1)
			for _, p := range parts[1:] {
				set = append(set, p)
			}
			pb.Filter(Where(op, parts[0], set))
		}
		return nil
	}
}

func binaryExtractor(op ComparisonOperator) Extractor {
	return func(key string, values []string, pb *PlanBuilder) error {
		for _, v := range values {
			parts, err := segments(key, v, 2, 2)
			if err != nil {
				return err
			}
			if parts[0] == "" {
				return invalid(key, "%q does not name a field", v)
			}
			pb.Filter(Where(op, parts[0], parts[1]))
		}
		return nil
	}
}

func extractEquality(key string, values []string, pb *PlanBuilder) error {
	for _, v := range values {
		pb.Filter(Equal(key, v))
	}
	return nil
}
