package document

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"
)

// computeChecksum hashes a canonical serialization of the live content so
// that two replicas holding the same blocks always agree. Formatting maps
// are serialized in sorted key order; iteration order must not leak in.
func (m *Model) computeChecksum() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%d;", m.doc.Id, m.doc.Version)
	for _, b := range m.doc.Blocks {
		if b.Removed {
			continue
		}
		fmt.Fprintf(&sb, "%s|%s|%s|", b.Id, b.Kind, b.Content)
		keys := make([]string, 0, len(b.Formatting))
		for k := range b.Formatting {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s=%s,", k, b.Formatting[k])
		}
		sb.WriteByte(';')
	}
	return fmt.Sprintf("%016x", xxh3.HashString(sb.String()))
}
