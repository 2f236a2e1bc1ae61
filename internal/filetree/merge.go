package filetree

import "sort"

// Merge combines trees in order. A path defined by several trees with the
// same fingerprint is kept once; a path defined with differing content makes
// Merge fail with a *ConflictError listing every such path.
func Merge(trees ...*Tree) (*Tree, error) {
	merged, collisions := merge(trees)
	if len(collisions) > 0 {
		return nil, &ConflictError{Collisions: collisions}
	}
	return merged, nil
}

// MergeOverwrite combines trees in order, letting the last-listed tree win on
// a path collision. Collisions are still returned so callers can report them.
func MergeOverwrite(trees ...*Tree) (*Tree, []Collision) {
	return merge(trees)
}

func merge(trees []*Tree) (*Tree, []Collision) {
	out := make(map[string]Entry)
	owners := make(map[string][]int)
	conflicted := make(map[string]bool)

	for i, t := range trees {
		if t == nil {
			continue
		}
		for _, p := range t.paths {
			e := t.entries[p]
			if prev, ok := out[p]; ok && prev.fingerprint != e.fingerprint {
				conflicted[p] = true
			}
			out[p] = e
			owners[p] = append(owners[p], i)
		}
	}

	collisions := make([]Collision, 0, len(conflicted))
	for p := range conflicted {
		collisions = append(collisions, Collision{Path: p, Trees: owners[p]})
	}
	sort.Slice(collisions, func(i, j int) bool { return collisions[i].Path < collisions[j].Path })
	return newTree(out), collisions
}
