// Package model defines the data structures used throughout the application.
package model

import "time"

// ClickState is the correlation state of a click.
//
// A click starts PENDING when the redirect is issued and becomes CLAIMED once
// a start event carrying its token arrives. CLAIMED is terminal.
type ClickState string

const (
	StatePending ClickState = "pending"
	StateClaimed ClickState = "claimed"
)

// Valid reports whether s is one of the known states.
func (s ClickState) Valid() bool {
	return s == StatePending || s == StateClaimed
}

// Identity is the platform-side identity merged into a click on claim.
//
// The bundle is written as a whole. UserID is mandatory; Telegram users may
// have no username or last name, so those fields can be empty strings.
type Identity struct {
	UserID    int64  `json:"platformUserId"`
	Username  string `json:"platformUsername"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Valid reports whether the identity can be merged into a click.
func (i Identity) Valid() bool {
	return i.UserID != 0
}

// SourceMetadata is the request context captured when the redirect is issued.
// It is informational only; correlation never depends on it.
type SourceMetadata struct {
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
	Referrer  string `json:"referrer"`
}

// Click is one inbound hit on the public link and its correlation state.
//
// INVARIANTS:
//   - State == StatePending ⇒ ClaimedAt == nil && Identity == nil
//   - State == StateClaimed ⇒ ClaimedAt != nil && Identity != nil
//   - ClaimedAt, when set, is never before CreatedAt
type Click struct {
	Token     string         `json:"token"`
	State     ClickState     `json:"state"`
	CreatedAt time.Time      `json:"createdAt"`
	ClaimedAt *time.Time     `json:"claimedAt,omitempty"`
	Identity  *Identity      `json:"identity,omitempty"`
	Source    SourceMetadata `json:"source"`
}

// Consistent reports whether the click satisfies the state/identity invariants.
func (c *Click) Consistent() bool {
	switch c.State {
	case StatePending:
		return c.ClaimedAt == nil && c.Identity == nil
	case StateClaimed:
		return c.ClaimedAt != nil && c.Identity != nil && !c.ClaimedAt.Before(c.CreatedAt)
	default:
		return false
	}
}
