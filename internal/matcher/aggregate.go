package matcher

// DefaultAggregateLimit caps the lesson-level result list.
const DefaultAggregateLimit = 5

// Aggregate flattens per-block results in block order, keeping the first
// occurrence of each code, and stops at limit.
func Aggregate(perBlock [][]Result, limit int) []Result {
	if limit <= 0 {
		limit = DefaultAggregateLimit
	}

	seen := make(map[string]struct{})
	out := make([]Result, 0, limit)
	for _, results := range perBlock {
		for _, result := range results {
			if _, ok := seen[result.Code]; ok {
				continue
			}
			seen[result.Code] = struct{}{}
			out = append(out, result)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}
