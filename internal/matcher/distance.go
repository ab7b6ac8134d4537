package matcher

// EditDistance returns the Levenshtein distance between word1 and word2
// with unit costs, compared byte by byte.
//
// With prefix set it returns the prefix edit distance instead: the
// smallest distance between word1 and any prefix of word2, including the
// empty prefix. "ha" is at prefix distance 0 from "hans" and at plain
// distance 2.
func EditDistance(word1, word2 string, prefix bool) int {
	prev := make([]int, len(word2)+1)
	curr := make([]int, len(word2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(word1); i++ {
		curr[0] = i
		for j := 1; j <= len(word2); j++ {
			cost := 1
			if word1[i-1] == word2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j-1]+cost, prev[j]+1, curr[j-1]+1)
		}
		prev, curr = curr, prev
	}
	if !prefix {
		return prev[len(word2)]
	}
	best := prev[0]
	for _, d := range prev[1:] {
		best = min(best, d)
	}
	return best
}
