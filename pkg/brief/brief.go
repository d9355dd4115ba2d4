// Package brief maintains the property brief that accumulates over a
// conversation: the buyer's location, budget, room and area requirements,
// extracted turn by turn by the service and patched onto the brief record.
package brief

import (
	"math"

	"github.com/estatechat/chatsync/pkg/api"
)

// requiredFields are the brief fields counted towards completeness.
var requiredFields = []string{"location", "budget_min", "budget_max", "rooms"}

// Completeness scores how filled-in a brief is, as a percentage of the
// required fields, rounded to two decimals.
func Completeness(b *api.Brief) float64 {
	if b == nil {
		return 0
	}

	filled := 0
	if b.Location != "" {
		filled++
	}
	if b.BudgetMin != nil {
		filled++
	}
	if b.BudgetMax != nil {
		filled++
	}
	if b.Rooms != "" {
		filled++
	}

	score := float64(filled) / float64(len(requiredFields)) * 100
	return math.Round(score*100) / 100
}

// Validate reports what is still missing before the brief can be
// submitted. An empty result means the brief is submittable.
func Validate(b *api.Brief) []string {
	var missing []string

	if b == nil {
		return []string{"brief is empty"}
	}
	if b.Location == "" {
		missing = append(missing, "Location is required")
	}
	if b.BudgetMin == nil && b.BudgetMax == nil {
		missing = append(missing, "Budget is required")
	}
	if b.Rooms == "" {
		missing = append(missing, "Room configuration is required")
	}

	return missing
}

// LeadScore rates the brief's quality as a sales lead on a 0..100 scale:
// completeness weighs 40 points, a bounded budget range 20, a concrete
// location 20, room and area detail 10 each.
func LeadScore(b *api.Brief) float64 {
	if b == nil {
		return 0
	}

	score := Completeness(b) * 0.4

	if b.BudgetMin != nil && b.BudgetMax != nil {
		score += 20
	}
	if b.Location != "" {
		score += 20
	}
	if b.Rooms != "" {
		score += 10
	}
	if b.AreaMin != nil || b.AreaMax != nil {
		score += 10
	}

	return math.Min(score, 100)
}

// UpdateFromEntities maps entities extracted from a conversation turn onto
// a brief patch. Unrecognized entities are carried in Data so nothing the
// service extracted is lost.
func UpdateFromEntities(entities map[string]any) api.BriefUpdate {
	var update api.BriefUpdate

	if v, ok := asString(entities["location"]); ok {
		update.Location = &v
	}
	if v, ok := asInt(entities["budget"]); ok {
		update.BudgetMax = &v
	}
	if v, ok := asString(entities["rooms"]); ok {
		update.Rooms = &v
	}
	if v, ok := asFloat(entities["area"]); ok {
		update.AreaMin = &v
	}

	if len(entities) > 0 {
		update.Data = entities
	}

	return update
}

// Empty reports whether the patch would change nothing on the brief.
func Empty(u api.BriefUpdate) bool {
	return u.Status == nil &&
		u.Location == nil &&
		u.BudgetMin == nil &&
		u.BudgetMax == nil &&
		u.Rooms == nil &&
		u.AreaMin == nil &&
		u.AreaMax == nil &&
		len(u.Data) == 0
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
