package match

import "fmt"

// Type classifies one entity's fate across a revision.
type Type string

const (
	TypeExact   Type = "EXACT"
	TypeSimilar Type = "SIMILAR"
	TypeNew     Type = "NEW"
	TypeDeleted Type = "DELETED"
	// TypeMoved is reserved for structural relocation detection; the matcher
	// does not produce it yet.
	TypeMoved Type = "MOVED"
)

// DefaultThreshold is the minimum similarity score for a SIMILAR match.
const DefaultThreshold = 0.8

// EntityMatch pairs an old entity with a new one. Old is nil for NEW matches
// and New is nil for DELETED matches; both are set for EXACT and SIMILAR.
type EntityMatch struct {
	Old        *Entity
	New        *Entity
	Type       Type
	Confidence float64
	Reason     string
	ExternalID string
}

// Match partitions old and new entity pools of one tree level into matches.
// Total and deterministic: every input entity appears in exactly one output
// match, and identical inputs always yield identical output.
//
// Three passes: shared external ids match EXACT at confidence 1.0 no matter
// how different the content is. Remaining old entities take the highest
// scoring unclaimed new entity at or above threshold as SIMILAR, ties broken
// by first-encountered order, or fall out as DELETED. Unclaimed new entities
// are NEW.
func Match(kind Kind, oldEntities, newEntities []Entity, threshold float64) []EntityMatch {
	matches := make([]EntityMatch, 0, len(oldEntities)+len(newEntities))

	// External ids may collide across parents since pools are flattened per
	// level; first occurrence wins, later duplicates fall through to the
	// similarity pass.
	oldByID := make(map[string]int)
	for i, entity := range oldEntities {
		if _, seen := oldByID[entity.ExternalID]; !seen {
			oldByID[entity.ExternalID] = i
		}
	}
	newByID := make(map[string]int)
	for i, entity := range newEntities {
		if _, seen := newByID[entity.ExternalID]; !seen {
			newByID[entity.ExternalID] = i
		}
	}

	oldClaimed := make([]bool, len(oldEntities))
	newClaimed := make([]bool, len(newEntities))

	for i := range oldEntities {
		oldIdx, ok := oldByID[oldEntities[i].ExternalID]
		if !ok || oldIdx != i {
			continue
		}
		newIdx, ok := newByID[oldEntities[i].ExternalID]
		if !ok {
			continue
		}
		oldClaimed[i] = true
		newClaimed[newIdx] = true
		matches = append(matches, EntityMatch{
			Old:        &oldEntities[i],
			New:        &newEntities[newIdx],
			Type:       TypeExact,
			Confidence: 1.0,
			Reason:     "external id unchanged",
			ExternalID: oldEntities[i].ExternalID,
		})
	}

	for i := range oldEntities {
		if oldClaimed[i] {
			continue
		}
		bestIdx := -1
		bestScore := 0.0
		for j := range newEntities {
			if newClaimed[j] {
				continue
			}
			score := Score(kind, oldEntities[i], newEntities[j])
			if score > bestScore {
				bestScore = score
				bestIdx = j
			}
		}
		if bestIdx >= 0 && bestScore >= threshold {
			oldClaimed[i] = true
			newClaimed[bestIdx] = true
			matches = append(matches, EntityMatch{
				Old:        &oldEntities[i],
				New:        &newEntities[bestIdx],
				Type:       TypeSimilar,
				Confidence: bestScore,
				Reason:     fmt.Sprintf("content similarity %.2f", bestScore),
				ExternalID: oldEntities[i].ExternalID,
			})
			continue
		}
		matches = append(matches, EntityMatch{
			Old:        &oldEntities[i],
			Type:       TypeDeleted,
			Confidence: 1.0,
			Reason:     "no candidate at or above threshold",
			ExternalID: oldEntities[i].ExternalID,
		})
	}

	for j := range newEntities {
		if newClaimed[j] {
			continue
		}
		matches = append(matches, EntityMatch{
			New:        &newEntities[j],
			Type:       TypeNew,
			Confidence: 1.0,
			Reason:     "not present in previous revision",
			ExternalID: newEntities[j].ExternalID,
		})
	}

	return matches
}
