package domain

import (
	"fmt"
	"strings"
)

// Documented clamp ranges for numeric thresholds.
var (
	SpellLevelRange    = Range{Min: 1, Max: 5}
	SpellPowerRange    = Range{Min: 0, Max: 100}
	SpellManaRange     = Range{Min: 0, Max: 500}
	StudentYearRange   = Range{Min: 1, Max: 7}
	StudentPointsRange = Range{Min: 0, Max: 1000}
	CreatureDanger     = Range{Min: 1, Max: 5}
	QuestRewardRange   = Range{Min: 0, Max: 10000}
)

// Known category tags per kind.
var (
	SpellSchools       = []string{"fire", "ice", "healing", "arcane", "nature"}
	StudentHouses      = []string{"Emberclaw", "Frostwing", "Stonehide", "Stormveil"}
	CreatureTypes      = []string{"beast", "dragon", "spirit", "undead", "elemental"}
	QuestDifficulties  = []string{"easy", "medium", "hard", "legendary"}
	questStatusByValue = map[bool]string{false: "open", true: "done"}
)

func ptr[T any](v T) *T { return &v }

// SpellSchema configures the spell grimoire.
func SpellSchema() Schema[Spell] {
	return Schema[Spell]{
		Kind: KindSpell,
		Fields: []Field[Spell]{
			{Name: "name", Kind: FieldText, Searchable: true, Text: func(s Spell) string { return s.Name }},
			{Name: "school", Kind: FieldText, Text: func(s Spell) string { return s.School }},
			{Name: "description", Kind: FieldText, Searchable: true, Text: func(s Spell) string { return s.Description }},
			{Name: "level", Kind: FieldNumber, Range: ptr(SpellLevelRange), Number: func(s Spell) float64 { return float64(s.Level) }},
			{Name: "power", Kind: FieldNumber, Range: ptr(SpellPowerRange), Number: func(s Spell) float64 { return float64(s.Power) }},
			{Name: "mana", Kind: FieldNumber, Range: ptr(SpellManaRange), Number: func(s Spell) float64 { return float64(s.Mana) }},
		},
		CategoryField: "school",
		Categories:    SpellSchools,
		Validate: func(s Spell) []FieldError {
			var errs []FieldError
			errs = requireText(errs, "name", s.Name)
			errs = requireText(errs, "school", s.School)
			errs = requireRange(errs, "level", float64(s.Level), SpellLevelRange)
			errs = requireRange(errs, "power", float64(s.Power), SpellPowerRange)
			errs = requireRange(errs, "mana", float64(s.Mana), SpellManaRange)
			return errs
		},
	}
}

// StudentSchema configures the house rankings.
func StudentSchema() Schema[Student] {
	return Schema[Student]{
		Kind: KindStudent,
		Fields: []Field[Student]{
			{Name: "name", Kind: FieldText, Searchable: true, Text: func(s Student) string { return s.Name }},
			{Name: "house", Kind: FieldText, Searchable: true, Text: func(s Student) string { return s.House }},
			{Name: "year", Kind: FieldNumber, Range: ptr(StudentYearRange), Number: func(s Student) float64 { return float64(s.Year) }},
			{Name: "points", Kind: FieldNumber, Range: ptr(StudentPointsRange), Number: func(s Student) float64 { return float64(s.Points) }},
		},
		CategoryField: "house",
		Categories:    StudentHouses,
		Validate: func(s Student) []FieldError {
			var errs []FieldError
			errs = requireText(errs, "name", s.Name)
			errs = requireText(errs, "house", s.House)
			errs = requireRange(errs, "year", float64(s.Year), StudentYearRange)
			if s.Points < 0 {
				errs = append(errs, FieldError{Field: "points", Message: "must not be negative"})
			}
			return errs
		},
	}
}

// CreatureSchema configures the creature gallery.
func CreatureSchema() Schema[Creature] {
	return Schema[Creature]{
		Kind: KindCreature,
		Fields: []Field[Creature]{
			{Name: "name", Kind: FieldText, Searchable: true, Text: func(c Creature) string { return c.Name }},
			{Name: "type", Kind: FieldText, Text: func(c Creature) string { return c.Type }},
			{Name: "habitat", Kind: FieldText, Searchable: true, Text: func(c Creature) string { return c.Habitat }},
			{Name: "danger", Kind: FieldNumber, Range: ptr(CreatureDanger), Number: func(c Creature) float64 { return float64(c.Danger) }},
		},
		CategoryField: "type",
		Categories:    CreatureTypes,
		Validate: func(c Creature) []FieldError {
			var errs []FieldError
			errs = requireText(errs, "name", c.Name)
			errs = requireText(errs, "type", c.Type)
			errs = requireRange(errs, "danger", float64(c.Danger), CreatureDanger)
			return errs
		},
	}
}

// QuestSchema configures the quest board. The status field exposes the
// completion flag as a text column so it can be sorted and exported.
func QuestSchema() Schema[Quest] {
	return Schema[Quest]{
		Kind: KindQuest,
		Fields: []Field[Quest]{
			{Name: "title", Kind: FieldText, Searchable: true, Text: func(q Quest) string { return q.Title }},
			{Name: "region", Kind: FieldText, Searchable: true, Text: func(q Quest) string { return q.Region }},
			{Name: "difficulty", Kind: FieldText, Text: func(q Quest) string { return q.Difficulty }},
			{Name: "reward", Kind: FieldNumber, Range: ptr(QuestRewardRange), Number: func(q Quest) float64 { return float64(q.Reward) }},
			{Name: "status", Kind: FieldText, Text: func(q Quest) string { return questStatusByValue[q.Completed] }},
		},
		CategoryField: "difficulty",
		Categories:    QuestDifficulties,
		Validate: func(q Quest) []FieldError {
			var errs []FieldError
			errs = requireText(errs, "title", q.Title)
			errs = requireText(errs, "region", q.Region)
			if !containsFold(QuestDifficulties, q.Difficulty) {
				errs = append(errs, FieldError{Field: "difficulty", Message: fmt.Sprintf("must be one of %s", strings.Join(QuestDifficulties, ", "))})
			}
			errs = requireRange(errs, "reward", float64(q.Reward), QuestRewardRange)
			return errs
		},
	}
}

func requireText(errs []FieldError, field, value string) []FieldError {
	if strings.TrimSpace(value) == "" {
		return append(errs, FieldError{Field: field, Message: "is required"})
	}
	return errs
}

func requireRange(errs []FieldError, field string, value float64, r Range) []FieldError {
	if !r.Contains(value) {
		return append(errs, FieldError{Field: field, Message: fmt.Sprintf("must be between %s and %s", formatNumber(r.Min), formatNumber(r.Max))})
	}
	return errs
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}
