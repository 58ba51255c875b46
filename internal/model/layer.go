// Package model holds the plain domain types shared by every component:
// layers, server status, vote-map configuration, weighting parameters and
// log-stream events. Types here are immutable value objects; nothing in this
// package talks to the network or a database.
package model

import "fmt"

// GameMode is a layer's game-mode family.
type GameMode string

const (
	GameModeWarfare   GameMode = "warfare"
	GameModeOffensive GameMode = "offensive"
	GameModeControl   GameMode = "control"
	GameModePhased    GameMode = "phased"
	GameModeMajority  GameMode = "majority"
)

// IsSkirmish reports whether m belongs to the skirmish family
// (control, phased, majority), per the GLOSSARY definition.
func (m GameMode) IsSkirmish() bool {
	switch m {
	case GameModeControl, GameModePhased, GameModeMajority:
		return true
	default:
		return false
	}
}

func (m GameMode) valid() bool {
	switch m {
	case GameModeWarfare, GameModeOffensive, GameModeControl, GameModePhased, GameModeMajority:
		return true
	default:
		return false
	}
}

// Faction is the attacking side of an offensive layer, or None for
// symmetric game modes.
type Faction string

const (
	FactionAllies Faction = "allies"
	FactionAxis   Faction = "axis"
	FactionNone   Faction = "none"
)

func (f Faction) valid() bool {
	switch f {
	case FactionAllies, FactionAxis, FactionNone:
		return true
	default:
		return false
	}
}

// Environment is the time-of-day / weather variant of a layer.
type Environment string

const (
	EnvironmentDay      Environment = "day"
	EnvironmentDawn     Environment = "dawn"
	EnvironmentDusk     Environment = "dusk"
	EnvironmentNight    Environment = "night"
	EnvironmentOvercast Environment = "overcast"
	EnvironmentRain     Environment = "rain"
)

// Map is the underlying terrain shared by one or more Layers.
type Map struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Tag           string `json:"tag"`
	PrettyName    string `json:"pretty_name"`
	AlliesFaction string `json:"allies_faction"`
	AxisFaction   string `json:"axis_faction"`
	Orientation   string `json:"orientation"`
}

// Layer is one specific playable variant: a Map plus a game mode, attacker
// side and environment. Layer.ID is the stable, globally unique key used
// everywhere else in the system (whitelist, history, selection).
type Layer struct {
	ID          string      `json:"id"`
	Map         Map         `json:"map"`
	GameMode    GameMode    `json:"game_mode"`
	Attackers   Faction     `json:"attackers"`
	Environment Environment `json:"environment"`
	PrettyName  string      `json:"pretty_name"`
	ImageName   string      `json:"image_name"`
}

// Validate checks the structural invariants a Layer must satisfy before it
// can be used by the selector or cached.
func (l Layer) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("layer: id is required")
	}
	if l.Map.ID == "" {
		return fmt.Errorf("layer %q: map.id is required", l.ID)
	}
	if !l.GameMode.valid() {
		return fmt.Errorf("layer %q: invalid game_mode %q", l.ID, l.GameMode)
	}
	if !l.Attackers.valid() {
		return fmt.Errorf("layer %q: invalid attackers %q", l.ID, l.Attackers)
	}
	return nil
}
