package cloud

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// EncodeAssociationsSemicolon serializes a resourceID -> original-ACL-ID map
// as "id:acl;id:acl", the format used by AWS/OpenStack/GCP artifacts (spec
// §6). Keys are sorted for a deterministic encoding.
func EncodeAssociationsSemicolon(mapping map[string]string) string {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, mapping[k]))
	}
	return strings.Join(parts, ";")
}

// DecodeAssociationsSemicolon parses the format EncodeAssociationsSemicolon
// produces.
func DecodeAssociationsSemicolon(encoded string) (map[string]string, error) {
	mapping := map[string]string{}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return mapping, nil
	}
	for _, pair := range strings.Split(encoded, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("cloud: malformed association pair %q", pair)
		}
		mapping[parts[0]] = parts[1]
	}
	return mapping, nil
}

// EncodeAssociationsJSON serializes the mapping as a JSON object, the format
// used by AlibabaCloud/Azure artifacts (spec §6). vSphere artifacts persist
// no mapping at all.
func EncodeAssociationsJSON(mapping map[string]string) (string, error) {
	b, err := json.Marshal(mapping)
	if err != nil {
		return "", fmt.Errorf("cloud: encode associations: %w", err)
	}
	return string(b), nil
}

// DecodeAssociationsJSON parses the format EncodeAssociationsJSON produces.
func DecodeAssociationsJSON(encoded string) (map[string]string, error) {
	mapping := map[string]string{}
	if strings.TrimSpace(encoded) == "" {
		return mapping, nil
	}
	if err := json.Unmarshal([]byte(encoded), &mapping); err != nil {
		return nil, fmt.Errorf("cloud: decode associations: %w", err)
	}
	return mapping, nil
}
