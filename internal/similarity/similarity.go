// Package similarity ranks the guests of an event by how closely their taste matches a target user.
//
// The score is the Pearson correlation coefficient computed strictly over the items both users have
// rated. Users without any overlap carry no information and are excluded; so are pairs where either
// side shows zero variance over the common items, because the correlation is undefined there. The
// undefined case is reported as an explicit sentinel - a NaN can never enter the ranking.
package similarity

import (
	"math"
	"sort"
)

const (
	// MinRatings is the number of distinct items the target user has to have rated before a
	// similarity query yields anything
	MinRatings = 3
	// MaxResults is the number of candidates a ranking is truncated to
	MaxResults = 5
)

// Vector maps item IDs to the score a user gave them
type Vector map[int]float64

// Candidate is one ranked user in a similarity result
type Candidate struct {
	// The candidate's email address
	Email string
	// The Pearson correlation between the candidate and the target over their common items
	Score float64
	// The item IDs both the candidate and the target have rated, ascending
	CommonItems []int
}

// CommonItems returns the item IDs present in both vectors, sorted ascending
func CommonItems(a, b Vector) []int {
	var ret []int
	for item := range a {
		if _, ok := b[item]; ok {
			ret = append(ret, item)
		}
	}
	sort.Ints(ret)
	return ret
}

// Pearson computes the Pearson correlation coefficient of the two vectors restricted to the given
// common items. The second return value is false when the correlation is undefined - empty
// intersection or zero variance on either side
func Pearson(a, b Vector, common []int) (float64, bool) {
	if len(common) == 0 {
		return 0, false
	}
	// Means over the common items only
	var sumA, sumB float64
	for _, item := range common {
		sumA += a[item]
		sumB += b[item]
	}
	meanA := sumA / float64(len(common))
	meanB := sumB / float64(len(common))

	var num, denA, denB float64
	for _, item := range common {
		diffA := a[item] - meanA
		diffB := b[item] - meanB
		num += diffA * diffB
		denA += diffA * diffA
		denB += diffB * diffB
	}
	if denA == 0 || denB == 0 {
		return 0, false
	}
	return num / (math.Sqrt(denA) * math.Sqrt(denB)), true
}

// Rank scores every candidate vector against the target and returns the qualifying candidates in a
// deterministic total order: score descending, then common-item count descending, then email
// ascending. The result is truncated to `limit` entries (MaxResults when limit is zero or negative)
func Rank(target Vector, others map[string]Vector, limit int) []Candidate {
	if limit <= 0 {
		limit = MaxResults
	}
	ret := make([]Candidate, 0, len(others))
	for email, vec := range others {
		common := CommonItems(target, vec)
		score, ok := Pearson(target, vec, common)
		if !ok {
			continue
		}
		ret = append(ret, Candidate{
			Email:       email,
			Score:       score,
			CommonItems: common,
		})
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Score != ret[j].Score {
			return ret[i].Score > ret[j].Score
		}
		if len(ret[i].CommonItems) != len(ret[j].CommonItems) {
			return len(ret[i].CommonItems) > len(ret[j].CommonItems)
		}
		return ret[i].Email < ret[j].Email
	})
	if len(ret) > limit {
		ret = ret[:limit]
	}
	return ret
}
