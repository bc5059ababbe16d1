package pipeline

import "github.com/newsdigest/digest-pipeline/internal/digest"

// Partition splits candidates into k balanced batches: the first n%k batches
// get one extra element, so no batch is disproportionately large. When there
// are fewer candidates than batches it degrades to one candidate per batch;
// no batch is ever empty.
func Partition(candidates []digest.Candidate, k int) [][]digest.Candidate {
	n := len(candidates)
	if n == 0 {
		return nil
	}
	if k <= 0 {
		k = 1
	}
	if k > n {
		k = n
	}

	base := n / k
	extra := n % k

	out := make([][]digest.Candidate, 0, k)
	start := 0
	for i := 0; i < k; i++ {
		size := base
		if i < extra {
			size++
		}
		out = append(out, candidates[start:start+size])
		start += size
	}
	return out
}

// BatchCount returns how many batches are needed to hold n candidates with
// at most batchSize per batch.
func BatchCount(n, batchSize int) int {
	if n <= 0 {
		return 0
	}
	if batchSize <= 1 {
		return n
	}
	return (n + batchSize - 1) / batchSize
}
