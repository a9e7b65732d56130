// Package match classifies how the nodes of one checklist revision relate to
// the nodes of the next: same node, renamed node, brand new, or gone.
package match

import "strings"

// Kind names the tree level an entity belongs to. Scoring blends a lexical
// base with a small structural signal that differs per level.
type Kind string

const (
	KindChecklist  Kind = "checklist"
	KindSection    Kind = "section"
	KindSubsection Kind = "subsection"
	KindGroup      Kind = "question_group"
	KindQuestion   Kind = "question"
	KindAnswer     Kind = "answer"
)

// Entity is the level-agnostic view of a tree node that matching operates on.
// Ref carries the caller's underlying node so match consumers can get back to
// the typed value without another lookup.
type Entity struct {
	ExternalID string
	Title      string
	AltTitle   string // female text variant, answers only
	Number     string
	AnswerType string
	Ref        any
}

// Score returns the confidence in [0,1] that two entities of the same kind
// are the same real-world thing. Symmetric; 0 when either title is empty.
func Score(kind Kind, old, new Entity) float64 {
	if strings.TrimSpace(old.Title) == "" || strings.TrimSpace(new.Title) == "" {
		return 0
	}

	switch kind {
	case KindSection, KindSubsection:
		base := jaccard(old.Title, new.Title)
		structural := 0.0
		if old.Number == new.Number {
			structural = 1.0
		}
		return 0.8*base + 0.2*structural
	case KindQuestion:
		base := jaccard(old.Title, new.Title)
		structural := 0.0
		if old.AnswerType == new.AnswerType {
			structural = 1.0
		}
		return 0.9*base + 0.1*structural
	case KindAnswer:
		return (jaccard(old.Title, new.Title) + jaccard(old.AltTitle, new.AltTitle)) / 2
	default:
		return jaccard(old.Title, new.Title)
	}
}

// jaccard is word-set overlap of the lowercased, whitespace-tokenized texts.
// A cheap bag-of-words heuristic: deterministic, offline, good enough to flag
// a rename for review.
func jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if setB[token] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		set[token] = true
	}
	return set
}
