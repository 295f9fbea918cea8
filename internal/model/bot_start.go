package model

import "time"

// BotStart is a start event whose token matched no click.
//
// It records that someone opened the bot with a start parameter we could not
// attribute: the click was purged, the token was forged, or the user reached
// the bot without going through the redirect. It is never turned into a Click.
//
// UpdateID is Telegram's update_id. A redelivered update carries the same
// one, so at most one BotStart exists per non-zero UpdateID.
type BotStart struct {
	ID         string    `json:"id"`                 // xid, sortable by time
	UpdateID   int64     `json:"updateId,omitempty"` // 0 when unknown
	Payload    string    `json:"payload"`            // the unmatched token, prefix stripped
	Identity   Identity  `json:"identity"`
	ReceivedAt time.Time `json:"receivedAt"`
}
