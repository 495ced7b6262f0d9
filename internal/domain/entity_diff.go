package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ChangedFields lists the flattened property keys whose values differ between
// base and target. A nil base means every key of target changed.
func ChangedFields(base, target map[string]any, ignore ...string) ([]string, error) {
	baseFlat := map[string]string{}
	if base != nil {
		if err := flattenProperties("", base, baseFlat); err != nil {
			return nil, err
		}
	}
	targetFlat := map[string]string{}
	if err := flattenProperties("", target, targetFlat); err != nil {
		return nil, err
	}

	skip := make(map[string]struct{}, len(ignore))
	for _, key := range ignore {
		skip[key] = struct{}{}
	}

	changed := make([]string, 0)
	for key, value := range targetFlat {
		if _, ignored := skip[key]; ignored {
			continue
		}
		if previous, ok := baseFlat[key]; !ok || previous != value {
			changed = append(changed, key)
		}
	}
	for key := range baseFlat {
		if _, ignored := skip[key]; ignored {
			continue
		}
		if _, ok := targetFlat[key]; !ok {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

func flattenProperties(prefix string, value any, acc map[string]string) error {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if prefix != "" {
				acc[prefix] = "{}"
			}
			return nil
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			nextPrefix := key
			if prefix != "" {
				nextPrefix = prefix + "." + key
			}
			if err := flattenProperties(nextPrefix, typed[key], acc); err != nil {
				return err
			}
		}
	case []any:
		if len(typed) == 0 {
			if prefix != "" {
				acc[prefix] = "[]"
			}
			return nil
		}
		for idx, item := range typed {
			nextPrefix := fmt.Sprintf("%s[%d]", prefix, idx)
			if prefix == "" {
				nextPrefix = fmt.Sprintf("[%d]", idx)
			}
			if err := flattenProperties(nextPrefix, item, acc); err != nil {
				return err
			}
		}
	case nil:
		if prefix != "" {
			acc[prefix] = "null"
		}
	default:
		if prefix == "" {
			return fmt.Errorf("property key missing for value %v", typed)
		}
		encoded, err := json.Marshal(typed)
		if err != nil {
			acc[prefix] = fmt.Sprintf("%v", typed)
		} else {
			acc[prefix] = string(encoded)
		}
	}

	return nil
}

func cloneProperties(input map[string]any) map[string]any {
	if input == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
