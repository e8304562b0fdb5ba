// Package visibility suppresses content across blocking relationships at read
// time. The filter is the single choke point for feeds, search results and
// member lists.
package visibility

// Authored is any content item that knows which profile wrote it.
type Authored interface {
	AuthoredBy() string
}

// BlockSet holds the profile IDs a viewer is separated from by a block edge,
// in either direction. Blocks are directed at write time but symmetric here.
type BlockSet map[string]struct{}

func NewBlockSet(profileIDs []string) BlockSet {
	set := make(BlockSet, len(profileIDs))
	for _, id := range profileIDs {
		set[id] = struct{}{}
	}
	return set
}

func (b BlockSet) Blocked(profileID string) bool {
	_, ok := b[profileID]
	return ok
}

// Filter returns the items whose authors have no block edge with the viewer.
// Order is preserved and the input slice is not mutated.
func Filter[T Authored](items []T, blocks BlockSet) []T {
	if len(blocks) == 0 {
		return items
	}
	kept := make([]T, 0, len(items))
	for _, item := range items {
		if blocks.Blocked(item.AuthoredBy()) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}
