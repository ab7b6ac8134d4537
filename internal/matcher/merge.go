package matcher

// MergeInvertedLists merges ascending id lists into one ascending list.
// It is a multiset union: an id present in several lists, or several
// times in one list, appears once per occurrence. The candidate filter
// counts those repeats.
func MergeInvertedLists(lists [][]uint32) []uint32 {
	if len(lists) == 0 {
		return nil
	}
	merged := lists[0]
	for _, list := range lists[1:] {
		merged = mergeTwo(merged, list)
	}
	out := make([]uint32, len(merged))
	copy(out, merged)
	return out
}

func mergeTwo(a, b []uint32) []uint32 {
	out := make([]uint32, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if b[j] < a[i] {
			out = append(out, b[j])
			j++
		} else {
			out = append(out, a[i])
			i++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
