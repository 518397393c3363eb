package scheduler

// TokenPermits reserves one permit per tokensPerPermit of batch weight, with
// a floor of one permit, so heavier batches claim a larger share of the
// broker while light ones stay cheap.
func TokenPermits(weight WeightFn, tokensPerPermit int) Permits {
	return func(chunk []int) int {
		if weight == nil || tokensPerPermit <= 0 {
			return 1
		}
		total := 0
		for _, u := range chunk {
			total += weight(u)
		}
		n := (total + tokensPerPermit - 1) / tokensPerPermit
		if n < 1 {
			n = 1
		}
		return n
	}
}
