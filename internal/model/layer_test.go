package model

import "testing"

func TestLayerValidate(t *testing.T) {
	tests := []struct {
		name    string
		layer   Layer
		wantErr bool
	}{
		{
			name: "valid warfare layer",
			layer: Layer{
				ID:          "carentan_warfare",
				Map:         Map{ID: "carentan"},
				GameMode:    GameModeWarfare,
				Attackers:   FactionNone,
				Environment: EnvironmentDay,
			},
			wantErr: false,
		},
		{
			name:    "missing id",
			layer:   Layer{Map: Map{ID: "carentan"}, GameMode: GameModeWarfare, Attackers: FactionNone},
			wantErr: true,
		},
		{
			name:    "missing map id",
			layer:   Layer{ID: "x", GameMode: GameModeWarfare, Attackers: FactionNone},
			wantErr: true,
		},
		{
			name:    "invalid game mode",
			layer:   Layer{ID: "x", Map: Map{ID: "m"}, GameMode: "siege", Attackers: FactionNone},
			wantErr: true,
		},
		{
			name:    "invalid attackers",
			layer:   Layer{ID: "x", Map: Map{ID: "m"}, GameMode: GameModeWarfare, Attackers: "north"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layer.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGameModeIsSkirmish(t *testing.T) {
	tests := []struct {
		mode GameMode
		want bool
	}{
		{GameModeWarfare, false},
		{GameModeOffensive, false},
		{GameModeControl, true},
		{GameModePhased, true},
		{GameModeMajority, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if got := tt.mode.IsSkirmish(); got != tt.want {
				t.Errorf("IsSkirmish() = %v, want %v", got, tt.want)
			}
		})
	}
}
