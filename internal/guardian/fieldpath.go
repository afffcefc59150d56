package guardian

import (
	"encoding/json"
	"regexp"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// bracketIndex rewrites spec.md §4.6's dotted/array-indexed field paths
// ("parties[0].name") into gjson/sjson's path syntax ("parties.0.name").
var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

func toLibPath(fieldPath string) string {
	return bracketIndex.ReplaceAllString(fieldPath, ".$1")
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(metadata)
}

// getPath reads fieldPath out of a metadata map as a string, returning ""
// if the path does not exist. An object or array value is returned as its
// raw JSON text.
func getPath(metadata map[string]any, fieldPath string) (string, error) {
	raw, err := marshalMetadata(metadata)
	if err != nil {
		return "", err
	}
	result := gjson.GetBytes(raw, toLibPath(fieldPath))
	if !result.Exists() {
		return "", nil
	}
	return result.String(), nil
}

// pathExists reports whether fieldPath resolves to anything in metadata,
// used by findAffected's metadata-path existence predicate.
func pathExists(metadata map[string]any, fieldPath string) (bool, error) {
	raw, err := marshalMetadata(metadata)
	if err != nil {
		return false, err
	}
	return gjson.GetBytes(raw, toLibPath(fieldPath)).Exists(), nil
}

// setPath writes value at fieldPath in metadata, growing intermediate
// objects/arrays as sjson requires, and returns the updated map.
func setPath(metadata map[string]any, fieldPath, value string) (map[string]any, error) {
	raw, err := marshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	updated, err := sjson.SetBytes(raw, toLibPath(fieldPath), value)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(updated, &out); err != nil {
		return nil, err
	}
	return out, nil
}
