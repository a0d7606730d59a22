package conf

// DefaultConfig holds default values keyed by their flattened config
// path, e.g. "dispatcher.max_workers".
type DefaultConfig map[string]any

// MergeDefaults merges maps into one, prefixing every key with ns. An
// empty ns merges the keys as they are.
func MergeDefaults[M ~map[string]V, V any](ns string, maps ...M) M {
	fullCap := 0
	for _, m := range maps {
		fullCap += len(m)
	}

	prefix := ""
	if ns != "" {
		prefix = ns + "."
	}

	merged := make(M, fullCap)
	for _, m := range maps {
		for key, val := range m {
			merged[prefix+key] = val
		}
	}

	return merged
}
