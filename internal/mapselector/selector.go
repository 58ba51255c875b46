// Package mapselector implements the weighted stratified map selection
// algorithm (spec §4.4, C4): partition the catalog into warfare/offensive/
// skirmish buckets, apply exclusion and weighting rules, and draw a
// selection per bucket using repeat-decayed weighted sampling.
//
// The working set is a parallel-array (struct-of-arrays) layout per row,
// following the "dataframe-based selector" redesign note: one O(n) pass per
// draw instead of a tabular-library join.
package mapselector

import (
	"math/rand"

	"github.com/bwcc-clan/polebot-go/internal/model"
)

// Selector computes a Selection from the current server state.
type Selector struct {
	Status     *model.ServerStatus
	Catalog    []model.Layer // already whitelist-filtered by the caller
	Weighting  model.WeightingParameters
	UserConfig model.VoteMapUserConfig
	History    *model.LayerHistory
	// Float64 returns a value in [0,1); injectable for deterministic tests.
	// Defaults to rand.Float64.
	Float64 func() float64
}

// bucket classifies a layer into one of the three game-mode families (spec
// §4.4: "skirmish ≔ game_mode ∈ {control, phased, majority}").
type bucket int

const (
	bucketWarfare bucket = iota
	bucketOffensive
	bucketSkirmish
)

func bucketOf(l model.Layer) bucket {
	switch {
	case l.GameMode == model.GameModeWarfare:
		return bucketWarfare
	case l.GameMode == model.GameModeOffensive:
		return bucketOffensive
	default:
		return bucketSkirmish
	}
}

// row is one working-set entry: a layer plus its derived weighting state,
// recomputed fresh for every Selector.Select call.
type row struct {
	layer               model.Layer
	mapWeight           float64
	mapRepeatDecay      float64
	envWeight           float64
	envRepeatDecay      float64
	mapNorm             float64
	envNorm             float64
	mapRepeatScore      float64
	envRepeatScore      float64
	envCategoryName     string
}

// Select computes the full three-bucket selection (spec §4.4: "grouped
// warfare→offensive→skirmish").
func (s *Selector) Select() model.Selection {
	rnd := s.Float64
	if rnd == nil {
		rnd = rand.Float64
	}

	currentID := ""
	var currentAttackers model.Faction
	var currentBucket bucket
	if s.Status != nil {
		currentID = s.Status.CurrentLayer.ID
		currentAttackers = s.Status.CurrentLayer.Attackers
		currentBucket = bucketOf(s.Status.CurrentLayer)
	}

	var selection model.Selection

	warfare := s.selectBucket(bucketWarfare, currentID, currentAttackers, currentBucket, rnd, s.UserConfig.NumWarfareOptions, false, false)
	selection = append(selection, warfare...)

	offensiveBlocked := currentBucket == bucketOffensive && !s.UserConfig.AllowConsecutiveOffensives
	var offensive []string
	if !offensiveBlocked {
		offensive = s.selectBucket(bucketOffensive, currentID, currentAttackers, currentBucket,
			rnd, s.UserConfig.NumOffensiveOptions,
			s.UserConfig.ConsiderOffensiveSameMap,
			s.UserConfig.AllowConsecutiveOffensivesOppositeSides)
	}
	selection = append(selection, offensive...)

	skirmishBlocked := currentBucket == bucketSkirmish && !s.UserConfig.AllowConsecutiveSkirmishes
	var skirmish []string
	if !skirmishBlocked {
		skirmish = s.selectBucket(bucketSkirmish, currentID, currentAttackers, currentBucket,
			rnd, s.UserConfig.NumSkirmishControlOptions,
			s.UserConfig.ConsiderSkirmishesAsSameMap,
			false)
	}
	selection = append(selection, skirmish...)

	return selection
}

func (s *Selector) selectBucket(
	target bucket,
	currentID string,
	currentAttackers model.Faction,
	currentBucket bucket,
	rnd func() float64,
	count int,
	considerSameMapExclusion bool,
	oppositeSidesAllowance bool,
) []string {
	if count <= 0 {
		return nil
	}

	rows := s.prepare(target, currentID, currentAttackers, currentBucket, considerSameMapExclusion, oppositeSidesAllowance)
	if len(rows) == 0 {
		return nil
	}

	var result []string
	for i := 0; i < count; i++ {
		idx, total := s.pickIndex(rows, rnd)
		if idx < 0 || total <= 0 {
			break
		}
		chosen := rows[idx]
		result = append(result, chosen.layer.ID)
		s.decay(rows, chosen)
		rows[idx].mapRepeatScore = 0
	}
	return result
}

// recentHistoryMapIDs returns the map ids of the first n history entries
// (head = most recent), used for same-map exclusion.
func recentHistoryMapIDs(catalog []model.Layer, recentIDs []string) map[string]struct{} {
	layerByID := make(map[string]model.Layer, len(catalog))
	for _, l := range catalog {
		layerByID[l.ID] = l
	}
	maps := make(map[string]struct{}, len(recentIDs))
	for _, id := range recentIDs {
		if l, ok := layerByID[id]; ok {
			maps[l.Map.ID] = struct{}{}
		}
	}
	return maps
}

func (s *Selector) prepare(
	target bucket,
	currentID string,
	currentAttackers model.Faction,
	currentBucket bucket,
	considerSameMapExclusion bool,
	oppositeSidesAllowance bool,
) []*row {
	excludeIDs := make(map[string]struct{})
	excludeIDs[currentID] = struct{}{}

	var recentIDs []string
	if s.History != nil {
		recentIDs = s.History.Take(s.UserConfig.NumberLastPlayedToExclude)
	}
	for _, id := range recentIDs {
		excludeIDs[id] = struct{}{}
	}

	var excludeMapIDs map[string]struct{}
	if considerSameMapExclusion {
		excludeMapIDs = recentHistoryMapIDs(s.Catalog, recentIDs)
	}

	// Step 1-3: filter into the bucket, applying exclusions.
	var filtered []model.Layer
	for _, l := range s.Catalog {
		if bucketOf(l) != target {
			continue
		}
		if _, excluded := excludeIDs[l.ID]; excluded {
			continue
		}
		if excludeMapIDs != nil {
			if _, excluded := excludeMapIDs[l.Map.ID]; excluded {
				continue
			}
		}
		if oppositeSidesAllowance && currentBucket == target && l.Attackers == currentAttackers {
			continue
		}
		filtered = append(filtered, l)
	}
	if len(filtered) == 0 {
		return nil
	}

	// Step 4: instance counts.
	mapCount := make(map[string]int, len(filtered))
	envCount := make(map[model.Environment]int, len(filtered))
	for _, l := range filtered {
		mapCount[l.Map.ID]++
		envCount[l.Environment]++
	}

	// Step 5-7: join against weighting groups/categories, normalize, seed scores.
	rows := make([]*row, 0, len(filtered))
	for _, l := range filtered {
		_, group, ok := s.Weighting.GroupForMap(l.Map.ID)
		if !ok {
			continue
		}
		envName, cat, ok := s.Weighting.CategoryForEnvironment(l.Environment)
		if !ok {
			continue
		}

		rows = append(rows, &row{
			layer:           l,
			mapWeight:       group.Weight,
			mapRepeatDecay:  group.RepeatDecay,
			envWeight:       cat.Weight,
			envRepeatDecay:  cat.RepeatDecay,
			mapNorm:         1 / float64(mapCount[l.Map.ID]),
			envNorm:         1 / float64(envCount[l.Environment]),
			mapRepeatScore:  1.0,
			envRepeatScore:  1.0,
			envCategoryName: envName,
		})
	}
	return rows
}

func (s *Selector) pickIndex(rows []*row, rnd func() float64) (int, float64) {
	weights := make([]float64, len(rows))
	var total float64
	for i, r := range rows {
		w := r.mapWeight * r.mapNorm * r.envWeight * r.envNorm * r.mapRepeatScore * r.envRepeatScore
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return -1, 0
	}

	target := rnd() * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if target < cumulative {
			return i, total
		}
	}
	return len(rows) - 1, total
}

func (s *Selector) decay(rows []*row, chosen *row) {
	for _, r := range rows {
		if r.layer.Map.ID == chosen.layer.Map.ID {
			r.mapRepeatScore *= r.mapRepeatDecay
		}
		if r.envCategoryName == chosen.envCategoryName {
			r.envRepeatScore *= r.envRepeatDecay
		}
	}
}
