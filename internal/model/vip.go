package model

import "time"

// VipInfo is one entry decoded from the CRCON VIP list download (spec §6:
// download_vips).
type VipInfo struct {
	PlayerID   string
	PlayerName string
	// VipExpiry is nil for a VIP with no expiry (the upstream file encodes
	// this as a far-future timestamp, normalized away at parse time).
	VipExpiry *time.Time
}
