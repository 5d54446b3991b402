package types

import (
	"time"
)

// KickRecord is one entry in the append-only kick log. Entries are never
// pruned and exist only for display to the room owner.
type KickRecord struct {
	Id        string    `json:"id"`
	Username  string    `json:"username"`
	KickedBy  string    `json:"kicked_by"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}
