package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/laggis/Discord-Ticket-bot/internal/domain"
)

// BucketPanels stores the current panel message per destination channel.
var BucketPanels = []byte("panels")

// PanelStore persists which message hosts the category-selection panel
// so restarts do not post it again.
type PanelStore struct {
	db *bolt.DB
}

// OpenPanelStore creates or opens the bbolt file at path.
func OpenPanelStore(path string) (*PanelStore, error) {
	if path == "" {
		path = "panel_state.db"
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create panel state directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open panel state: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(BucketPanels)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create panel bucket: %w", err)
	}
	return &PanelStore{db: db}, nil
}

// Close closes the database.
func (s *PanelStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the stored panel for channelID, or nil when none was recorded.
func (s *PanelStore) Get(ctx context.Context, channelID string) (*domain.PanelRef, error) {
	var ref *domain.PanelRef
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(BucketPanels).Get([]byte(channelID))
		if data == nil {
			return nil
		}
		ref = &domain.PanelRef{}
		return json.Unmarshal(data, ref)
	})
	if err != nil {
		return nil, fmt.Errorf("read panel state: %w", err)
	}
	return ref, nil
}

// Put records ref as the panel for its channel, replacing any previous one.
func (s *PanelStore) Put(ctx context.Context, ref domain.PanelRef) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshal panel state: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketPanels).Put([]byte(ref.ChannelID), data)
	})
}

// Delete forgets the panel stored for channelID.
func (s *PanelStore) Delete(ctx context.Context, channelID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketPanels).Delete([]byte(channelID))
	})
}
