package query

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/asaidimu/go-restful/core"
	"go.uber.org/zap"
)

// PredicateFunction evaluates one operator against a record field in memory.
type PredicateFunction func(record core.Record, field string, value FilterValue) (bool, error)

// DataProcessor evaluates plans against in-memory records. It backs resources
// that serve rows from a Go source instead of a table.
type DataProcessor struct {
	predicates map[ComparisonOperator]PredicateFunction
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewDataProcessor creates a new DataProcessor with the built-in operators.
func NewDataProcessor(logger *zap.Logger) *DataProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &DataProcessor{
		predicates: make(map[ComparisonOperator]PredicateFunction),
		logger:     logger,
	}
	p.registerStandard()
	return p
}

// RegisterFilterFunction overrides the evaluation of one operator.
func (p *DataProcessor) RegisterFilterFunction(operator ComparisonOperator, fn PredicateFunction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.predicates[operator] = fn
	p.logger.Debug("Registered filter function", zap.String("operator", string(operator)))
}

func (p *DataProcessor) registerStandard() {
	cmp := func(accept func(int) bool) PredicateFunction {
		return func(r core.Record, field string, v FilterValue) (bool, error) {
			got, ok := r[field]
			if !ok || got == nil || v == nil {
				return false, nil
			}
			return accept(compareValues(got, v)), nil
		}
	}
	contains := func(fold bool) PredicateFunction {
		return func(r core.Record, field string, v FilterValue) (bool, error) {
			got, ok := r[field]
			if !ok || got == nil {
				return false, nil
			}
			haystack, needle := core.ToString(got), core.ToString(v)
			if fold {
				haystack, needle = strings.ToLower(haystack), strings.ToLower(needle)
			}
			return strings.Contains(haystack, needle), nil
		}
	}
	member := func(negate bool) PredicateFunction {
		return func(r core.Record, field string, v FilterValue) (bool, error) {
			values, ok := v.([]FilterValue)
			if !ok {
				return false, fmt.Errorf("membership filter on %q requires a list", field)
			}
			got := r[field]
			for _, candidate := range values {
				if got != nil && compareValues(got, candidate) == 0 {
					return !negate, nil
				}
			}
			return negate, nil
		}
	}

	p.predicates[ComparisonOperatorEq] = cmp(func(c int) bool { return c == 0 })
	p.predicates[ComparisonOperatorNe] = cmp(func(c int) bool { return c != 0 })
	p.predicates[ComparisonOperatorGt] = cmp(func(c int) bool { return c > 0 })
	p.predicates[ComparisonOperatorLt] = cmp(func(c int) bool { return c < 0 })
	p.predicates[ComparisonOperatorGe] = cmp(func(c int) bool { return c >= 0 })
	p.predicates[ComparisonOperatorLe] = cmp(func(c int) bool { return c <= 0 })
	p.predicates[ComparisonOperatorLike] = contains(false)
	p.predicates[ComparisonOperatorILike] = contains(true)
	p.predicates[ComparisonOperatorMatch] = contains(true)
	p.predicates[ComparisonOperatorIn] = member(false)
	p.predicates[ComparisonOperatorNotIn] = member(true)
}

// compareValues orders two values numerically when both are numeric and
// lexically otherwise.
func compareValues(a, b any) int {
	if ab, ok := a.(bool); ok {
		if bb, ok := core.ToBool(b); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	af, aok := core.ToFloat64(a)
	bf, bok := core.ToFloat64(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(core.ToString(a), core.ToString(b))
}

// Match reports whether a record satisfies the filter.
func (p *DataProcessor) Match(record core.Record, filter QueryFilter) (bool, error) {
	switch {
	case filter.Equality != nil:
		return p.evaluate(record, ComparisonOperatorEq, filter.Equality.Field, filter.Equality.Value)
	case filter.Condition != nil:
		return p.evaluate(record, filter.Condition.Operator, filter.Condition.Field, filter.Condition.Value)
	case filter.Group != nil:
		switch filter.Group.Operator {
		case LogicalOperatorAnd, LogicalOperatorNot:
			all := true
			for _, c := range filter.Group.Conditions {
				ok, err := p.Match(record, c)
				if err != nil {
					return false, err
				}
				if !ok {
					all = false
					break
				}
			}
			if filter.Group.Operator == LogicalOperatorNot {
				return !all, nil
			}
			return all, nil
		case LogicalOperatorOr:
			for _, c := range filter.Group.Conditions {
				ok, err := p.Match(record, c)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, fmt.Errorf("unsupported logical operator %q", filter.Group.Operator)
		}
	default:
		return false, fmt.Errorf("invalid filter structure: no member is set")
	}
}

func (p *DataProcessor) evaluate(record core.Record, op ComparisonOperator, field string, value FilterValue) (bool, error) {
	p.mu.RLock()
	fn, ok := p.predicates[op]
	p.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("unsupported comparison operator %q", op)
	}
	return fn(record, field, value)
}

// Apply runs a plan over records: filters, orders, count, then the window.
// Filters that fail to evaluate are logged and skipped. The count is taken
// before pagination.
func (p *DataProcessor) Apply(records []core.Record, filters []QueryFilter, orders []SortConfiguration, page Pagination) (int64, []core.Record) {
	rows := make([]core.Record, 0, len(records))
	usable := make([]QueryFilter, 0, len(filters))
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			p.logger.Warn("Skipping invalid filter", zap.Stringer("filter", f), zap.Error(err))
			continue
		}
		usable = append(usable, f)
	}

next:
	for _, r := range records {
		for _, f := range usable {
			ok, err := p.Match(r, f)
			if err != nil {
				p.logger.Warn("Skipping filter that failed to evaluate", zap.Stringer("filter", f), zap.Error(err))
				continue
			}
			if !ok {
				continue next
			}
		}
		rows = append(rows, r)
	}

	if len(orders) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			for _, o := range orders {
				c := compareNullable(rows[i][o.Field], rows[j][o.Field])
				if c == 0 {
					continue
				}
				if o.Direction == SortDirectionDesc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	count := int64(len(rows))
	if page.Offset != nil {
		if *page.Offset >= int64(len(rows)) {
			rows = rows[:0]
		} else {
			rows = rows[*page.Offset:]
		}
	}
	if page.Limit != nil && *page.Limit < int64(len(rows)) {
		rows = rows[:*page.Limit]
	}
	return count, rows
}

func compareNullable(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return compareValues(a, b)
	}
}
