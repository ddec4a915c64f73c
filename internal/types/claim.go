package types

// ClaimInfo is the wire form of a lease over a task. ClaimedAt is epoch
// milliseconds so staleness math stays integer on both sides.
type ClaimInfo struct {
	ClaimedBy string `json:"claimedBy"`
	ClaimedAt int64  `json:"claimedAt"`
	IsStale   bool   `json:"isStale"`
}

// ClaimStatus reports whether a task is claimed and by whom
type ClaimStatus struct {
	Claimed bool       `json:"claimed"`
	Claim   *ClaimInfo `json:"claim,omitempty"`
}
