// Package contactstore persists the known-contacts table: an external
// collaborator per the call core's scope, owned here only because the
// orchestrator needs somewhere to record ContactOnline/ContactOffline
// events and a place for a front-end bridge to list known peers.
package contactstore

import (
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ErrNotFound is returned by Get when no contact with the given peer_id
// exists.
var ErrNotFound = errors.New("contactstore: not found")

// Store is the persistence surface the orchestrator and any UI bridge
// depend on.
type Store interface {
	// Upsert inserts or updates a contact's username, leaving
	// DisplayName/IsOnline untouched if the row already exists.
	Upsert(peerID, username string) error
	// SetOnline updates a contact's online status, upserting username if
	// the contact is not yet known.
	SetOnline(peerID, username string, online bool) error
	// SetDisplayName sets a local-only display name override.
	SetDisplayName(peerID, displayName string) error
	// Get returns one contact by peer_id, or ErrNotFound.
	Get(peerID string) (Contact, error)
	// List returns every known contact.
	List() ([]Contact, error)
}

// gormStore is the default Store backed by SQLite via gorm, matching
// the persistence stack used elsewhere in this codebase's dependency
// pack for small embedded datasets.
type gormStore struct {
	db *gorm.DB
}

// Open opens (creating if absent) a SQLite database at path and
// migrates the contacts schema.
func Open(path string) (Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Contact{}); err != nil {
		return nil, err
	}
	return &gormStore{db: db}, nil
}

func (s *gormStore) Upsert(peerID, username string) error {
	now := time.Now()
	var existing Contact
	err := s.db.First(&existing, "peer_id = ?", peerID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.db.Create(&Contact{
			PeerID: peerID, Username: username, CreatedAt: now, UpdatedAt: now,
		}).Error
	case err != nil:
		return err
	default:
		return s.db.Model(&existing).Updates(map[string]any{
			"username":   username,
			"updated_at": now,
		}).Error
	}
}

func (s *gormStore) SetOnline(peerID, username string, online bool) error {
	now := time.Now()
	var existing Contact
	err := s.db.First(&existing, "peer_id = ?", peerID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.db.Create(&Contact{
			PeerID: peerID, Username: username, IsOnline: online,
			CreatedAt: now, UpdatedAt: now,
		}).Error
	case err != nil:
		return err
	default:
		updates := map[string]any{"is_online": online, "updated_at": now}
		if username != "" {
			updates["username"] = username
		}
		return s.db.Model(&existing).Updates(updates).Error
	}
}

func (s *gormStore) SetDisplayName(peerID, displayName string) error {
	return s.db.Model(&Contact{}).Where("peer_id = ?", peerID).
		Updates(map[string]any{"display_name": displayName, "updated_at": time.Now()}).Error
}

func (s *gormStore) Get(peerID string) (Contact, error) {
	var c Contact
	err := s.db.First(&c, "peer_id = ?", peerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Contact{}, ErrNotFound
	}
	return c, err
}

func (s *gormStore) List() ([]Contact, error) {
	var contacts []Contact
	err := s.db.Find(&contacts).Error
	return contacts, err
}
