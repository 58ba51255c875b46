package model

// Selection is the ordered set of layer ids produced by the map selector,
// grouped warfare, then offensive, then skirmish (spec §4.4).
type Selection []string
