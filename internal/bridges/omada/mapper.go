package omada

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-omada/internal/namespace"
)

// MapOptions steers the JSON-to-namespace projection of one payload.
type MapOptions struct {
	// KeyField names a record field whose value becomes the path
	// segment for array elements (content addressing). Ignored when
	// any element lacks the field, falling back to ordinal indices.
	KeyField string

	// LabelField names a record field used as the display label of the
	// generated container. It never influences the path.
	LabelField string

	// ForceIndex forces ordinal array indices even when KeyField is
	// set and present. Needed for arrays whose key field is not unique
	// (alert and event logs repeat records).
	ForceIndex bool

	// Writable marks every produced leaf as accepting external writes.
	Writable bool
}

// Parse projects a JSON document onto namespace objects and leaves
// rooted at basePath.
//
// Scalars map to a single leaf. Objects recurse, each key appending a
// path segment. Arrays map each element under an ordinal index, or
// under the element's KeyField value when configured (see MapOptions).
// The projection is a pure function of its inputs: re-parsing identical
// input yields identical output, and nothing is ever produced that
// would remove an existing leaf.
//
// Duplicate paths (two array elements sharing a key field value) are
// both emitted in element order; the store applies them sequentially,
// so the last element wins.
func Parse(basePath string, raw json.RawMessage, opts MapOptions) ([]namespace.Object, []namespace.Leaf, error) {
	if basePath == "" {
		return nil, nil, fmt.Errorf("base path is required")
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, nil, fmt.Errorf("decoding payload: %w", err)
	}

	var (
		containers []namespace.Object
		leaves     []namespace.Leaf
	)
	walk(basePath, "", value, opts, &containers, &leaves)
	return containers, leaves, nil
}

func walk(path, label string, value any, opts MapOptions, containers *[]namespace.Object, leaves *[]namespace.Leaf) {
	switch v := value.(type) {
	case map[string]any:
		*containers = append(*containers, namespace.Object{
			Path: path,
			Type: namespace.TypeChannel,
			Name: label,
		})

		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			walk(path+"."+sanitizeSegment(k), k, v[k], opts, containers, leaves)
		}

	case []any:
		*containers = append(*containers, namespace.Object{
			Path: path,
			Type: namespace.TypeChannel,
			Name: label,
		})

		keyed := opts.KeyField != "" && !opts.ForceIndex && allHaveKeyField(v, opts.KeyField)
		for i, element := range v {
			segment := strconv.Itoa(i)
			elementLabel := ""
			if keyed {
				record := element.(map[string]any)
				segment = sanitizeSegment(scalarString(record[opts.KeyField]))
				if opts.LabelField != "" {
					if name, ok := record[opts.LabelField].(string); ok {
						elementLabel = name
					}
				}
			}
			walk(path+"."+segment, elementLabel, element, opts, containers, leaves)
		}

	default:
		*leaves = append(*leaves, namespace.Leaf{
			Path:     path,
			Value:    v,
			Type:     inferType(v),
			Name:     label,
			Writable: opts.Writable,
		})
	}
}

// allHaveKeyField reports whether every array element is an object
// carrying a non-empty value for the key field. A single element
// missing it disables content addressing for the whole array.
func allHaveKeyField(elements []any, field string) bool {
	if len(elements) == 0 {
		return false
	}
	for _, element := range elements {
		record, ok := element.(map[string]any)
		if !ok {
			return false
		}
		value, ok := record[field]
		if !ok || scalarString(value) == "" {
			return false
		}
	}
	return true
}

// inferType classifies a decoded JSON scalar.
func inferType(v any) namespace.ValueType {
	switch v.(type) {
	case bool:
		return namespace.ValueBoolean
	case float64:
		return namespace.ValueNumber
	default:
		return namespace.ValueString
	}
}

// scalarString renders a scalar for use as a path segment.
func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// sanitizeSegment makes a string safe as a path segment: dots collide
// with the path separator and MQTT reserves '/', '+' and '#' in topic
// levels. Anything outside [A-Za-z0-9_-] becomes '_'.
func sanitizeSegment(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
