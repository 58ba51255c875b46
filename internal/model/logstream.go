package model

import (
	"encoding/json"
)

// LogMessageType enumerates the log line "action" tags CRCON transmits over
// the log-stream WebSocket, exactly as they appear on the wire.
type LogMessageType string

const (
	LogAdmin               LogMessageType = "ADMIN"
	LogAdminAntiCheat      LogMessageType = "ADMIN ANTI-CHEAT"
	LogAdminBanned         LogMessageType = "ADMIN BANNED"
	LogAdminIdle           LogMessageType = "ADMIN IDLE"
	LogAdminKicked         LogMessageType = "ADMIN KICKED"
	LogAdminMisc           LogMessageType = "ADMIN MISC"
	LogAdminPermaBanned    LogMessageType = "ADMIN PERMA BANNED"
	LogChat                LogMessageType = "CHAT"
	LogChatAllies          LogMessageType = "CHAT[Allies]"
	LogChatAlliesTeam      LogMessageType = "CHAT[Allies][Team]"
	LogChatAlliesUnit      LogMessageType = "CHAT[Allies][Unit]"
	LogChatAxis            LogMessageType = "CHAT[Axis]"
	LogChatAxisTeam        LogMessageType = "CHAT[Axis][Team]"
	LogChatAxisUnit        LogMessageType = "CHAT[Axis][Unit]"
	LogCamera              LogMessageType = "CAMERA"
	LogConnected           LogMessageType = "CONNECTED"
	LogDisconnected        LogMessageType = "DISCONNECTED"
	LogKill                LogMessageType = "KILL"
	LogMatch               LogMessageType = "MATCH"
	LogMatchEnded          LogMessageType = "MATCH ENDED"
	LogMatchStart          LogMessageType = "MATCH START"
	LogMessage             LogMessageType = "MESSAGE"
	LogTeamKill            LogMessageType = "TEAM KILL"
	LogTeamSwitch          LogMessageType = "TEAMSWITCH"
	LogTK                  LogMessageType = "TK"
	LogTKAuto              LogMessageType = "TK AUTO"
	LogTKAutoBanned        LogMessageType = "TK AUTO BANNED"
	LogTKAutoKicked        LogMessageType = "TK AUTO KICKED"
	LogVote                LogMessageType = "VOTE"
	LogVoteCompleted       LogMessageType = "VOTE COMPLETED"
	LogVoteExpired         LogMessageType = "VOTE EXPIRED"
	LogVotePassed          LogMessageType = "VOTE PASSED"
	LogVoteStarted         LogMessageType = "VOTE STARTED"
)

// StructuredLogLine is one decoded CRCON log line. Only Action is
// interpreted by this system; every other field CRCON sends travels through
// Extra unparsed, so new fields appearing upstream never require a schema
// migration here.
type StructuredLogLine struct {
	Version      int            `json:"version"`
	TimestampMs  int64          `json:"timestamp_ms"`
	RelativeTime float64        `json:"relative_time_ms"`
	Raw          string         `json:"raw"`
	Action       LogMessageType `json:"action"`
	Player1Name  string         `json:"player_name_1,omitempty"`
	Player1ID    string         `json:"player_id_1,omitempty"`
	Player2Name  string         `json:"player_name_2,omitempty"`
	Player2ID    string         `json:"player_id_2,omitempty"`
	Weapon       string         `json:"weapon,omitempty"`
	Message      string         `json:"message,omitempty"`
	SubContent   string         `json:"sub_content,omitempty"`

	// Extra carries any field CRCON sent that this struct doesn't name
	// explicitly, keyed by JSON field name.
	Extra map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields into the struct above and stashes
// everything else into Extra, so an unrecognized upstream field never fails
// decoding of the fields this system actually uses.
func (l *StructuredLogLine) UnmarshalJSON(data []byte) error {
	type alias StructuredLogLine
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*l = StructuredLogLine(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	known := map[string]struct{}{
		"version": {}, "timestamp_ms": {}, "relative_time_ms": {}, "raw": {}, "action": {},
		"player_name_1": {}, "player_id_1": {}, "player_name_2": {}, "player_id_2": {},
		"weapon": {}, "message": {}, "sub_content": {},
	}
	extra := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if _, ok := known[k]; ok {
			continue
		}
		extra[k] = v
	}
	if len(extra) > 0 {
		l.Extra = extra
	}
	return nil
}

// MarshalJSON round-trips Extra back into the top-level object so
// converting a decoded line back to JSON reproduces the original payload
// (see spec §8's round-trip law).
func (l StructuredLogLine) MarshalJSON() ([]byte, error) {
	type alias StructuredLogLine
	base, err := json.Marshal(alias(l))
	if err != nil {
		return nil, err
	}
	if len(l.Extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range l.Extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// LogStreamObject is one entry of a LogStreamResponse: an opaque monotone
// cursor id paired with the decoded log line.
type LogStreamObject struct {
	ID  string             `json:"id"`
	Log StructuredLogLine `json:"log"`
}

// LogStreamResponse is one WebSocket frame pushed by the CRCON log stream.
type LogStreamResponse struct {
	Logs       []LogStreamObject `json:"logs"`
	LastSeenID *string           `json:"last_seen_id"`
	Error      string            `json:"error,omitempty"`
}

// LogStreamInit is the single JSON frame sent immediately after connecting.
type LogStreamInit struct {
	// LastSeenID is deliberately always present (not omitempty), including
	// when nil: see DESIGN.md's Open Question note — the original
	// implementation resends it unconditionally, which on a nil cursor asks
	// the server to replay its whole buffer. Preserved literally.
	LastSeenID *string          `json:"last_seen_id"`
	Actions    []LogMessageType `json:"actions,omitempty"`
}
