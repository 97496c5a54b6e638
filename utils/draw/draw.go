// Package draw holds the weighted random pick primitive shared by the
// giveaway winner selector and the raffle roll.
package draw

import "math/rand"

// Pick returns a uniformly random element of the pool. Because weighted
// entries appear once per unit of weight, the chance of picking a member is
// proportional to their remaining copies. The pool must not be empty.
func Pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

// RemoveAll returns the pool with every copy of id removed. A member can
// win at most once, so once drawn their remaining entries leave the pool.
func RemoveAll(pool []string, id string) []string {
	out := pool[:0]
	for _, v := range pool {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// PickWeighted draws one key from a weight map, with probability
// proportional to its weight. Entries with non-positive weight are skipped.
// It returns "" when the map holds no positive weight.
func PickWeighted(rng *rand.Rand, weights map[string]int) string {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return ""
	}

	// Iteration order over a map is random, but the cumulative sum makes
	// the draw fair regardless of order.
	n := rng.Intn(total)
	for id, w := range weights {
		if w <= 0 {
			continue
		}
		if n < w {
			return id
		}
		n -= w
	}
	return ""
}
