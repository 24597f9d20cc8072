// Package layering merges stored settings snapshots across scopes.
package layering

import "sort"

// Merge combines snapshots ordered strongest first. Each key takes the value
// of the strongest snapshot holding it; values are opaque encoded text and are
// never merged themselves. The result is a new map, empty when no layer holds
// anything.
func Merge(layers ...map[string]string) map[string]string {
	merged, _ := MergeWithWinners(layers...)
	return merged
}

// MergeWithWinners is Merge that also reports, for every merged key, the index
// of the layer that supplied it.
func MergeWithWinners(layers ...map[string]string) (map[string]string, map[string]int) {
	size := 0
	for _, layer := range layers {
		size += len(layer)
	}
	merged := make(map[string]string, size)
	winners := make(map[string]int, size)
	for i, layer := range layers {
		for key, value := range layer {
			if _, taken := winners[key]; taken {
				continue
			}
			merged[key] = value
			winners[key] = i
		}
	}
	return merged, winners
}

// Shadowed returns, sorted, the keys of layers[index] that a stronger layer
// overrides.
func Shadowed(index int, layers ...map[string]string) []string {
	if index <= 0 || index >= len(layers) {
		return nil
	}
	var keys []string
	for key := range layers[index] {
		for _, stronger := range layers[:index] {
			if _, ok := stronger[key]; ok {
				keys = append(keys, key)
				break
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// Clone copies snapshot. A nil snapshot stays nil.
func Clone(snapshot map[string]string) map[string]string {
	if snapshot == nil {
		return nil
	}
	out := make(map[string]string, len(snapshot))
	for key, value := range snapshot {
		out[key] = value
	}
	return out
}
