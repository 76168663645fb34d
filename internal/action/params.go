package action

import (
	"fmt"
	"strconv"
)

// Reserved parameter keys injected by the scheduler into every invocation.
const (
	// ParamPartitionValue carries the run-scoped partition value.
	ParamPartitionValue = "partition_value"
	// ParamStepName carries the name of the executing step.
	ParamStepName = "name"
)

// Params is the parameter mapping passed to an action invocation.
type Params map[string]any

// String returns the parameter as a string, or def when absent.
func (p Params) String(key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	switch value := v.(type) {
	case string:
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}

// Int returns the parameter as an int, or def when absent or unparsable.
func (p Params) Int(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch value := v.(type) {
	case int:
		return value
	case int64:
		return int(value)
	case uint64:
		return int(value)
	case float64:
		return int(value)
	case string:
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return def
}

// StringSlice returns the parameter as a slice of strings.
func (p Params) StringSlice(key string) []string {
	v, ok := p[key]
	if !ok {
		return nil
	}
	switch value := v.(type) {
	case []string:
		return value
	case []any:
		result := make([]string, 0, len(value))
		for _, item := range value {
			result = append(result, fmt.Sprintf("%v", item))
		}
		return result
	case string:
		return []string{value}
	}
	return nil
}

// StringMap returns the parameter as a map of strings.
func (p Params) StringMap(key string) map[string]string {
	v, ok := p[key]
	if !ok {
		return nil
	}
	switch value := v.(type) {
	case map[string]string:
		return value
	case map[string]any:
		result := make(map[string]string, len(value))
		for k, item := range value {
			result[k] = fmt.Sprintf("%v", item)
		}
		return result
	}
	return nil
}

// Merge returns a copy of p overlaid with the given entries. The receiver
// is not mutated; steps share their declared params across retries.
func (p Params) Merge(overlay Params) Params {
	merged := make(Params, len(p)+len(overlay))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}
