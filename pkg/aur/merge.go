package aur

import "strings"

// Merge combines two name-sorted, duplicate-free lists into one sorted,
// duplicate-free list.
//
// When both lists hold a record with the same name, the record from left is
// dropped and the one from right is kept: callers pass the accumulated list as
// left and newly completed work as right, so newer results supersede older
// ones. Neither input is modified.
func Merge(left, right []*Package) []*Package {
	if len(left) == 0 {
		return append([]*Package(nil), right...)
	}
	if len(right) == 0 {
		return append([]*Package(nil), left...)
	}

	out := make([]*Package, 0, len(left)+len(right))
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		switch c := strings.Compare(left[i].Name, right[j].Name); {
		case c < 0:
			out = append(out, left[i])
			i++
		case c > 0:
			out = append(out, right[j])
			j++
		default:
			out = append(out, right[j])
			i++
			j++
		}
	}
	out = append(out, left[i:]...)
	return append(out, right[j:]...)
}

// Dedup drops adjacent records with equal names from a sorted list, keeping
// the first. Renderers call it so that printing stays idempotent even if a
// caller built a list without going through Merge. The input is not modified.
func Dedup(list []*Package) []*Package {
	if len(list) < 2 {
		return list
	}
	out := make([]*Package, 0, len(list))
	out = append(out, list[0])
	for _, p := range list[1:] {
		if p.Name != out[len(out)-1].Name {
			out = append(out, p)
		}
	}
	return out
}
