package matching

import (
	"math"
	"sort"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// PartialRatio scores how well the shorter of a and b aligns with some
// equal-length window of the longer one, from 0 to 100. Distances count a
// substitution as a deletion plus an insertion.
//
// Only windows lined up with a run of characters the two strings share are
// scored, so an exact substring always scores 100.
func PartialRatio(a, b string) int {
	shorter, longer := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return 0
	}
	if len(shorter) == len(longer) {
		return percent(levenshtein.RatioForStrings(shorter, longer, levenshtein.DefaultOptions))
	}

	n := len(shorter)
	best := 0.0
	seen := make(map[int]bool)
	for _, blk := range matchingBlocks(shorter, longer) {
		start := blk.j - blk.i
		if start < 0 {
			start = 0
		}
		if start > len(longer)-n {
			start = len(longer) - n
		}
		if seen[start] {
			continue
		}
		seen[start] = true

		ratio := levenshtein.RatioForStrings(shorter, longer[start:start+n], levenshtein.DefaultOptions)
		if ratio > best {
			best = ratio
			if best >= 1 {
				break
			}
		}
	}

	return percent(best)
}

func percent(ratio float64) int {
	return int(math.Round(ratio * 100))
}

// block is a run of size equal runes at a[i:] and b[j:]
type block struct {
	i, j, size int
}

// matchingBlocks splits a and b around their longest common run, then
// recurses into the pieces on either side. Blocks come back ordered by
// position, followed by a zero-size block at the ends of both strings.
func matchingBlocks(a, b []rune) []block {
	var blocks []block
	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(a), 0, len(b)}}
	row := make([]int, len(b)+1)
	prev := make([]int, len(b)+1)

	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		blk := longestRun(a, b, s.alo, s.ahi, s.blo, s.bhi, row, prev)
		if blk.size == 0 {
			continue
		}
		blocks = append(blocks, blk)
		if s.alo < blk.i && s.blo < blk.j {
			queue = append(queue, span{s.alo, blk.i, s.blo, blk.j})
		}
		if blk.i+blk.size < s.ahi && blk.j+blk.size < s.bhi {
			queue = append(queue, span{blk.i + blk.size, s.ahi, blk.j + blk.size, s.bhi})
		}
	}

	sort.Slice(blocks, func(x, y int) bool { return blocks[x].i < blocks[y].i })
	return append(blocks, block{i: len(a), j: len(b)})
}

// longestRun finds the longest common run inside a[alo:ahi] and b[blo:bhi].
// Among equally long runs the one starting earliest in a wins, then the one
// starting earliest in b. row and prev are scratch space of len(b)+1.
func longestRun(a, b []rune, alo, ahi, blo, bhi int, row, prev []int) block {
	best := block{i: alo, j: blo}
	for k := blo; k <= bhi; k++ {
		prev[k] = 0
	}
	for i := alo; i < ahi; i++ {
		row[blo] = 0
		for j := blo; j < bhi; j++ {
			if a[i] != b[j] {
				row[j+1] = 0
				continue
			}
			k := prev[j] + 1
			row[j+1] = k
			if k > best.size {
				best = block{i: i - k + 1, j: j - k + 1, size: k}
			}
		}
		row, prev = prev, row
	}
	return best
}
