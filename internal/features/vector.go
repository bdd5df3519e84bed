package features

import "sort"

// Keys returns the vector's feature names in sorted order. Used for schema
// discovery in dataset metadata.
func (v Vector) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Float returns a numeric feature value, coercing ints. Missing or
// non-numeric features read as 0.
func (v Vector) Float(key string) float64 {
	switch value := v[key].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	}
	return 0
}
