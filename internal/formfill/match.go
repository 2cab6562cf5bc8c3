package formfill

import (
	"sort"
	"strings"

	"github.com/xkilldash9x/alris-cli/internal/normalize"
)

// Candidate is one scored field for a given key.
type Candidate struct {
	Index      int
	Field      *DiscoveredField
	Confidence Confidence
}

// Match pairs every user field with its best discovered field. It has no side
// effects and returns exactly one result per user field, in input order.
// Unmatched keys are reported with ConfidenceNone, never dropped.
//
// The first field with an exact candidate wins outright. Otherwise the first
// field with a partial candidate wins; later partial matches never replace it.
func Match(userFields []UserField, discovered []DiscoveredField) []MatchResult {
	results := make([]MatchResult, 0, len(userFields))
	for _, uf := range userFields {
		res := MatchResult{Key: uf.Key, Value: uf.Value}
		if idx, conf := bestField(normalize.Key(uf.Key), discovered); idx >= 0 {
			res.Field = &discovered[idx]
			res.Confidence = conf
		}
		results = append(results, res)
	}
	return results
}

// Rank returns every field scoring above zero for key, best first. Ties keep
// discovery order, so Rank(key, d)[0] is the field Match would choose.
func Rank(key string, discovered []DiscoveredField) []Candidate {
	k := normalize.Key(key)
	if k == "" {
		return nil
	}
	var ranked []Candidate
	for i := range discovered {
		if c := score(k, discovered[i]); c > ConfidenceNone {
			ranked = append(ranked, Candidate{Index: i, Field: &discovered[i], Confidence: c})
		}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Confidence > ranked[b].Confidence
	})
	return ranked
}

type accumulator struct {
	index      int
	confidence Confidence
}

// bestField folds over the discovered fields. key must already be normalized.
func bestField(key string, discovered []DiscoveredField) (int, Confidence) {
	acc := accumulator{index: -1}
	if key == "" {
		return acc.index, acc.confidence
	}
	for i := range discovered {
		c := score(key, discovered[i])
		if c == ConfidenceExact {
			return i, c
		}
		if c > acc.confidence {
			acc = accumulator{index: i, confidence: c}
		}
	}
	return acc.index, acc.confidence
}

// score is the best confidence over the field's candidate labels.
func score(key string, field DiscoveredField) Confidence {
	best := ConfidenceNone
	for _, raw := range field.candidates() {
		cand := normalize.Key(raw)
		if cand == "" {
			continue
		}
		if cand == key {
			return ConfidenceExact
		}
		if best < ConfidencePartial && (strings.Contains(cand, key) || strings.Contains(key, cand)) {
			best = ConfidencePartial
		}
	}
	return best
}

// FieldsFromMap converts extracted form data into user fields ordered by key,
// so repeated runs apply values in the same order.
func FieldsFromMap(data map[string]any) []UserField {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]UserField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, UserField{Key: k, Value: data[k]})
	}
	return fields
}
