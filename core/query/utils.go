package query

// Int64Ptr returns a pointer to i.
func Int64Ptr(i int64) *int64 {
	return &i
}

// FromQuery parses a raw query string with the built-in extractors.
func FromQuery(raw string) (*QueryPlan, error) {
	params, err := ParseParams(raw)
	if err != nil {
		return nil, err
	}
	return DefaultRegistry().Extract(params)
}

// ConcatFilters returns a new slice holding a followed by b.
func ConcatFilters(a []QueryFilter, b ...QueryFilter) []QueryFilter {
	out := make([]QueryFilter, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
