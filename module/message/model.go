package message

import "time"

const (
	CollMessages   = "module_messages"
	CollReadStatus = "module_read_status"
)

// MaxBodyRunes bounds a chat message body after trimming.
const MaxBodyRunes = 500

// Message is one chat entry in a module. Immutable once written; only
// an admin delete or the retention sweep removes it.
type Message struct {
	ID        string    `bson:"_id" json:"id"`
	ModuleID  string    `bson:"module_id" json:"module_id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Username  string    `bson:"username" json:"username"`
	Role      string    `bson:"role" json:"role"`
	Body      string    `bson:"body" json:"message"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// ReadWatermark marks "read up to" for one (user, module) pair. The
// unique index on the pair turns every write into an upsert.
type ReadWatermark struct {
	UserID     string    `bson:"user_id" json:"user_id"`
	ModuleID   string    `bson:"module_id" json:"module_id"`
	LastReadAt time.Time `bson:"last_read_at" json:"last_read_at"`
}
