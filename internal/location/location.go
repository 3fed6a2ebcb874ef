// Package location implements Phase L (§4.4): a deterministic keyword
// classifier over a config-supplied table of (country, keyword, weight)
// triples. No network call, no classifier dependency — this phase has no
// ordering dependency on any other and could run in parallel with S/E/T.
package location

import "strings"

// KeywordWeight classifies the strength of one matched keyword, per §4.4's
// "country_name match contributes 5.0; a city match 2.0; a generic location
// keyword 1.0-3.0" table.
type KeywordWeight struct {
	Keyword string
	Weight  float64
}

// Country is one entry in the classifier's lookup table: a country and the
// keywords (with weights) whose presence in the text counts as evidence for it.
type Country struct {
	Name     string
	Keywords []KeywordWeight
}

// Classifier scores free text against a fixed table of countries.
type Classifier struct {
	countries []Country
}

// New builds a Classifier over countries. The table is expected to come
// from config (collectors.<source>.keywords style administrative data),
// not from this package.
func New(countries []Country) *Classifier {
	return &Classifier{countries: countries}
}

// Result is Phase L's output: the best-matching country (if any) and its
// min-max normalized confidence.
type Result struct {
	Label      *string
	Confidence float64
}

// Classify scores text against every country and returns the best match.
// If no keyword matches anything, Label is nil and Confidence is 0.
func (c *Classifier) Classify(text string) Result {
	lower := strings.ToLower(text)

	scores := make(map[string]float64, len(c.countries))
	var maxScore float64
	for _, country := range c.countries {
		var score float64
		for _, kw := range country.Keywords {
			if strings.Contains(lower, strings.ToLower(kw.Keyword)) {
				score += kw.Weight
			}
		}
		scores[country.Name] = score
		if score > maxScore {
			maxScore = score
		}
	}

	if maxScore == 0 {
		return Result{}
	}

	var minScore = maxScore
	for _, s := range scores {
		if s > 0 && s < minScore {
			minScore = s
		}
	}

	var best string
	var bestScore float64
	for _, country := range c.countries {
		if s := scores[country.Name]; s > bestScore {
			bestScore = s
			best = country.Name
		}
	}

	confidence := 1.0
	if maxScore != minScore {
		confidence = (bestScore - minScore) / (maxScore - minScore)
	}

	label := best
	return Result{Label: &label, Confidence: confidence}
}
