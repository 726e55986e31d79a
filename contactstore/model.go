package contactstore

import "time"

// Contact is one row of the known-peers table. PeerID is the routing
// identifier; Username is advisory and DisplayName is a local-only
// override.
type Contact struct {
	PeerID      string `gorm:"primaryKey"`
	Username    string
	DisplayName string
	IsOnline    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
