package domain

// Scope selects how much of the region-code block is kept after a geocode
// lookup. Finer-grained keys are removed from the lookup response when the
// scope does not request them.
type Scope int

const (
	// ScopeState keeps only state-level identifiers.
	ScopeState Scope = iota
	// ScopeCounty keeps state and county identifiers.
	ScopeCounty
	// ScopeBlock keeps the full block-level response.
	ScopeBlock
)

// RegionCodes is the administrative-region block resolved from coordinates.
// Keys are the lookup service's "State", "County" and "Block" objects plus
// any status metadata it returns.
type RegionCodes map[string]any

// Trim removes the keys the scope does not request. ScopeState keeps State
// only, ScopeCounty adds County, ScopeBlock keeps everything.
func (r RegionCodes) Trim(scope Scope) RegionCodes {
	if scope < ScopeBlock {
		delete(r, "Block")
	}
	if scope < ScopeCounty {
		delete(r, "County")
	}
	return r
}
