// Package keys computes stable hashes of planner search states so the
// visited set can be keyed cheaply.
package keys

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/cambium-dev/cambium/pkg/property"
)

// StateKey returns a stable Hash64 of a (property bag, cardinality) planner
// state. Entries are hashed in sorted key order to guarantee that two bags
// holding the same entries produce the same key regardless of insertion
// order.
func StateKey(props *property.Properties, cardinality string) uint64 {
	digest := xxhash.New()

	sortedKeys := props.Keys()
	sort.Strings(sortedKeys)

	// prefix to avoid overlap with previous strings written
	_, _ = digest.WriteString("/")

	for _, key := range sortedKeys {
		value, _ := props.Get(key)
		// entry with a separator at the end
		_, _ = digest.WriteString(fmt.Sprintf("%s=%s:%s,", key, value.Kind().String(), value.String()))
	}

	_, _ = digest.WriteString("#" + cardinality)

	return digest.Sum64()
}
