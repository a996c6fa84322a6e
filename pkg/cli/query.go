package cli

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// Query runs the jq expression expr against v and returns the result. v is
// first converted to its JSON form, so json struct tags name the fields. A
// query yielding one value returns it; any other count returns []any.
func Query(expr string, v any) (any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jq input: %w", err)
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("jq input: %w", err)
	}

	var results []any
	iter := query.Run(input)
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := out.(error); ok {
			return nil, fmt.Errorf("jq %q: %w", expr, err)
		}
		results = append(results, out)
	}
	if len(results) == 1 {
		return results[0], nil
	}
	if results == nil {
		results = []any{}
	}
	return results, nil
}
