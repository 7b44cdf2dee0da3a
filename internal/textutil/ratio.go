package textutil

// Ratio computes a normalized character-level sequence similarity between
// two strings in [0, 1]. It is 2*M/T, where M is the total length of the
// matching blocks found by recursive longest-common-substring pairing and
// T is the combined length of both inputs. Two empty strings are identical.
func Ratio(a, b string) float64 {
	ar := []rune(a)
	br := []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1
	}

	b2j := make(map[rune][]int, len(br))
	for j, r := range br {
		b2j[r] = append(b2j[r], j)
	}

	matched := totalMatching(ar, b2j, 0, len(ar), 0, len(br))
	return 2 * float64(matched) / float64(total)
}

// totalMatching sums the longest match in a[alo:ahi] vs b[blo:bhi] plus the
// matches recursively found on either side of it.
func totalMatching(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) int {
	i, j, k := longestMatch(a, b2j, alo, ahi, blo, bhi)
	if k == 0 {
		return 0
	}
	return k +
		totalMatching(a, b2j, alo, i, blo, j) +
		totalMatching(a, b2j, i+k, ahi, j+k, bhi)
}

// longestMatch finds the longest block a[i:i+k] == b[j:j+k] within the
// given windows. Ties resolve to the earliest position in a, then in b.
func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		newJ2len := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newJ2len
	}
	return besti, bestj, bestsize
}
