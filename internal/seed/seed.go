// Package seed holds the start-up record lists and decodes seed documents
// shaped like domain.Snapshot from JSON or YAML.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"grimoire/internal/blob"
	"grimoire/pkg/domain"
)

// Format names a seed document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Default returns the built-in start-up lists for every kind.
func Default() domain.Snapshot {
	return domain.Snapshot{
		Spells:    domain.Bucket[domain.Spell]{Records: Spells()},
		Students:  domain.Bucket[domain.Student]{Records: Students()},
		Creatures: domain.Bucket[domain.Creature]{Records: Creatures()},
		Quests:    domain.Bucket[domain.Quest]{Records: Quests()},
	}
}

// Spells returns the grimoire start-up list.
func Spells() []domain.Spell {
	return []domain.Spell{
		{ID: 1, Name: "Fireball", School: "fire", Level: 3, Power: 80, Mana: 40, Description: "A roaring sphere of flame."},
		{ID: 2, Name: "Ice Shard", School: "ice", Level: 2, Power: 45, Mana: 20, Description: "A splinter of frozen air."},
		{ID: 3, Name: "Heal", School: "healing", Level: 2, Power: 30, Mana: 25, Description: "Knits flesh and bone."},
		{ID: 4, Name: "Arcane Missile", School: "arcane", Level: 1, Power: 25, Mana: 10, Description: "Darts of raw force."},
		{ID: 5, Name: "Entangle", School: "nature", Level: 1, Power: 15, Mana: 12, Description: "Roots bind the target."},
		{ID: 6, Name: "Blizzard", School: "ice", Level: 4, Power: 85, Mana: 120, Description: "A storm of hail and wind."},
		{ID: 7, Name: "Resurrection", School: "healing", Level: 5, Power: 95, Mana: 400, Description: "Calls a soul back."},
		{ID: 8, Name: "Meteor", School: "fire", Level: 5, Power: 100, Mana: 450, Description: "Stone falls burning from the sky."},
	}
}

// Students returns the house rankings start-up list.
func Students() []domain.Student {
	return []domain.Student{
		{ID: 1, Name: "Aldric Vane", House: "Emberclaw", Year: 3, Points: 412},
		{ID: 2, Name: "Brielle Moss", House: "Frostwing", Year: 5, Points: 530},
		{ID: 3, Name: "Corin Ashdown", House: "Stonehide", Year: 1, Points: 120},
		{ID: 4, Name: "Dara Quill", House: "Stormveil", Year: 7, Points: 880},
		{ID: 5, Name: "Elowen Hart", House: "Emberclaw", Year: 4, Points: 305},
		{ID: 6, Name: "Fenwick Rook", House: "Frostwing", Year: 2, Points: 190},
		{ID: 7, Name: "Greta Lorn", House: "Stonehide", Year: 6, Points: 640},
		{ID: 8, Name: "Hollis Pike", House: "Stormveil", Year: 3, Points: 275},
	}
}

// Creatures returns the bestiary start-up list.
func Creatures() []domain.Creature {
	return []domain.Creature{
		{ID: 1, Name: "Dire Wolf", Type: "beast", Habitat: "Northern Forest", Danger: 2},
		{ID: 2, Name: "Ember Drake", Type: "dragon", Habitat: "Ashen Peaks", Danger: 4},
		{ID: 3, Name: "Will-o'-Wisp", Type: "spirit", Habitat: "Fen Marshes", Danger: 1},
		{ID: 4, Name: "Barrow Wight", Type: "undead", Habitat: "Old Barrows", Danger: 3},
		{ID: 5, Name: "Storm Elemental", Type: "elemental", Habitat: "Sky Spires", Danger: 4},
		{ID: 6, Name: "Elder Wyrm", Type: "dragon", Habitat: "Sunken Caldera", Danger: 5},
	}
}

// Quests returns the quest board start-up list.
func Quests() []domain.Quest {
	return []domain.Quest{
		{ID: 1, Title: "Clear the Cellar", Region: "Millbrook", Difficulty: "easy", Reward: 50},
		{ID: 2, Title: "Escort the Caravan", Region: "King's Road", Difficulty: "medium", Reward: 300},
		{ID: 3, Title: "Silence the Wight", Region: "Old Barrows", Difficulty: "hard", Reward: 1200},
		{ID: 4, Title: "Gather Moonpetals", Region: "Fen Marshes", Difficulty: "easy", Reward: 80, Completed: true},
		{ID: 5, Title: "Slay the Ember Drake", Region: "Ashen Peaks", Difficulty: "legendary", Reward: 8000},
		{ID: 6, Title: "Map the Sunken Caldera", Region: "Sunken Caldera", Difficulty: "hard", Reward: 1500},
		{ID: 7, Title: "Deliver the Sealed Letter", Region: "Millbrook", Difficulty: "easy", Reward: 25, Completed: true},
		{ID: 8, Title: "Break the Bandit Camp", Region: "King's Road", Difficulty: "medium", Reward: 450},
		{ID: 9, Title: "Calm the Storm Spires", Region: "Sky Spires", Difficulty: "legendary", Reward: 9500},
		{ID: 10, Title: "Recover the Lost Tome", Region: "Northern Forest", Difficulty: "medium", Reward: 600},
	}
}

// DetectFormat picks a format from the file extension, falling back to the
// first non-space byte of the document.
func DetectFormat(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatYAML
}

// Decode parses a seed document.
func Decode(data []byte, format Format) (domain.Snapshot, error) {
	var snapshot domain.Snapshot
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&snapshot); err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode json seed: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&snapshot); err != nil && !errors.Is(err, io.EOF) {
			return domain.Snapshot{}, fmt.Errorf("decode yaml seed: %w", err)
		}
	default:
		return domain.Snapshot{}, fmt.Errorf("unsupported seed format %q", format)
	}
	return snapshot, nil
}

// ReadFile loads a seed document from disk.
func ReadFile(path string) (domain.Snapshot, error) {
	// #nosec G304: path is operator supplied.
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read seed: %w", err)
	}
	return Decode(data, DetectFormat(path, data))
}

// ReadBlob loads a seed document stored under key.
func ReadBlob(ctx context.Context, store blob.Store, key string) (domain.Snapshot, error) {
	_, body, err := store.Get(ctx, key)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("fetch seed %s: %w", key, err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read seed %s: %w", key, err)
	}
	return Decode(data, DetectFormat(key, data))
}

// Encode renders snapshot as a seed document.
func Encode(snapshot domain.Snapshot, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(snapshot, "", "  ")
	case FormatYAML:
		return yaml.Marshal(snapshot)
	default:
		return nil, fmt.Errorf("unsupported seed format %q", format)
	}
}
