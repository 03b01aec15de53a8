package knowledge

// Matcher scores how similar a query is to a stored input summary, in [0,1].
type Matcher interface {
	Score(query, stored string) float64
}

// Jaccard scores by token-set overlap.
type Jaccard struct{}

// Score implements Matcher.
func (Jaccard) Score(query, stored string) float64 {
	return Similarity(NewTokenSet(query), NewTokenSet(stored))
}

// Similarity is the Jaccard index |a∩b| / |a∪b|. Two empty sets score 0.
func Similarity(a, b TokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
