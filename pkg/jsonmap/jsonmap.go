package jsonmap

import (
	"fmt"

	"gorm.io/datatypes"
)

// FromStringMap converts a string map into a GORM JSON map value.
func FromStringMap(values map[string]string) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for key, value := range values {
		out[key] = value
	}
	return out
}

// ToStringMap converts a JSON map into a string map.
func ToStringMap(values datatypes.JSONMap) map[string]string {
	out := make(map[string]string, len(values))
	for key, value := range values {
		if str, ok := value.(string); ok {
			out[key] = str
			continue
		}
		out[key] = fmt.Sprint(value)
	}
	return out
}

// Merge overlays override entries onto a copy of base. Neither input
// is mutated.
func Merge(base, override datatypes.JSONMap) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for key, value := range base {
		out[key] = value
	}
	for key, value := range override {
		out[key] = value
	}
	return out
}

// Bool reads a boolean toggle from a JSON map, defaulting to false when
// the key is absent or not a bool.
func Bool(values datatypes.JSONMap, key string) bool {
	if values == nil {
		return false
	}
	if v, ok := values[key].(bool); ok {
		return v
	}
	return false
}
