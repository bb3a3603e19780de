package geocode

import (
	"context"
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/2gPigeon/jig-intern-public/internal/domain/import/normalizer"
)

// Suggestion is a cached place that resembles an unresolved one.
type Suggestion struct {
	PlaceKey    string  `json:"placeKey"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"displayName"`
	Source      string  `json:"source"`
	Distance    int     `json:"distance"`
}

// Suggest ranks cached entries against place. A cached key matches when
// either string fuzzily contains the other; closer matches come first.
func (r *Resolver) Suggest(ctx context.Context, place string, limit int) ([]Suggestion, error) {
	key := normalizer.PlaceKey(place)
	if key == "" {
		return []Suggestion{}, nil
	}

	entries, err := r.cache.ListCache(ctx, r.scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list geocode cache: %w", err)
	}

	suggestions := make([]Suggestion, 0)
	for _, e := range entries {
		distance := fuzzy.RankMatchNormalizedFold(key, e.PlaceKey)
		if distance < 0 {
			distance = fuzzy.RankMatchNormalizedFold(e.PlaceKey, key)
		}
		if distance < 0 {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			PlaceKey:    e.PlaceKey,
			Latitude:    e.Latitude,
			Longitude:   e.Longitude,
			DisplayName: e.DisplayName,
			Source:      e.Source,
			Distance:    distance,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Distance < suggestions[j].Distance
	})
	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}
