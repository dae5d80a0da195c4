package prompt

import (
	"math/rand"
	"sort"
	"strings"
)

// Activator decides which worldbook entries join the assembled prompt.
type Activator struct {
	// Rand returns a uniform value in [0,1) for the probability gate.
	// Nil falls back to math/rand. Tests pin this to a fixed source.
	Rand func() float64
}

// Activate returns the activated subset of entries for the given context
// text, sorted by (depth asc, order asc) with stable ties so placement is
// deterministic.
func (a *Activator) Activate(entries []WorldbookEntry, contextText string) []WorldbookEntry {
	var activated []WorldbookEntry
	for _, e := range entries {
		if !e.Enabled {
			continue
		}
		if !a.matches(e, contextText) {
			continue
		}
		if !a.passProbability(e.Probability) {
			continue
		}
		activated = append(activated, e)
	}

	sort.SliceStable(activated, func(i, j int) bool {
		if activated[i].Depth != activated[j].Depth {
			return activated[i].Depth < activated[j].Depth
		}
		return activated[i].Order < activated[j].Order
	})
	return activated
}

func (a *Activator) matches(e WorldbookEntry, text string) bool {
	switch e.Mode {
	case ActivationAlways:
		return true
	case ActivationVector:
		// Embedding activation is not implemented; never activates.
		return false
	case ActivationKeyword:
		return keywordMatch(e, text)
	default:
		return false
	}
}

func keywordMatch(e WorldbookEntry, text string) bool {
	// Empty primary keys never hit; there is no implicit match-everything.
	primaryHit := anyKeyIn(e.Keys, text)
	if !primaryHit {
		return false
	}
	if len(e.SecondaryKeys) == 0 {
		switch e.Logic {
		case LogicAndAny, LogicAndAll, LogicNotAny, LogicNotAll:
			return true
		default:
			return false
		}
	}

	secondaryHit := anyKeyIn(e.SecondaryKeys, text)
	switch e.Logic {
	case LogicAndAny, LogicAndAll:
		return secondaryHit
	case LogicNotAny:
		return !secondaryHit
	case LogicNotAll:
		return !allKeysIn(e.SecondaryKeys, text)
	default:
		return false
	}
}

// anyKeyIn is case-sensitive substring containment over the key set.
func anyKeyIn(keys []string, text string) bool {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func allKeysIn(keys []string, text string) bool {
	if len(keys) == 0 {
		return false
	}
	for _, k := range keys {
		if !strings.Contains(text, k) {
			return false
		}
	}
	return true
}

func (a *Activator) passProbability(probability int) bool {
	if probability >= 100 {
		return true
	}
	if probability <= 0 {
		return false
	}
	draw := a.Rand
	if draw == nil {
		draw = rand.Float64
	}
	return draw()*100 < float64(probability)
}
