// ABOUTME: BoltDB-backed implementation of the Store and TokenStore interfaces
// ABOUTME: The whole conversation collection lives under one key and is rewritten on every save

package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	sessionsBucket   = []byte("sessions")
	authBucket       = []byte("auth")
	conversationsKey = []byte("conversations")
	tokenKey         = []byte("token")
	guestKey         = []byte("guest")
)

// BoltStore persists the conversation collection in a single BoltDB file.
// Different logical datasets (conversations, auth state) are kept in separate
// buckets within the one DB file.
//
// The collection is serialized as one JSON array under a single key. Every
// Save is a full rewrite of that key; there are no partial writes, so reads
// always observe the most recent complete write.
type BoltStore struct {
	db          *bolt.DB
	logger      *slog.Logger
	recentLimit int
}

// Option configures a BoltStore.
type Option func(*BoltStore)

// WithRecentLimit overrides the recent-partition display cap.
func WithRecentLimit(n int) Option {
	return func(s *BoltStore) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

// NewBoltStore opens (creating if needed) the DB file at path.
// Pass nil logger for default.
func NewBoltStore(path string, logger *slog.Logger, opts ...Option) (*BoltStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists(sessionsBucket); e != nil {
			return e
		}
		_, e := tx.CreateBucketIfNotExists(authBucket)
		return e
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing store buckets: %w", err)
	}
	s := &BoltStore{
		db:          db,
		logger:      logger.With("component", "store"),
		recentLimit: RecentLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying DB file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// List returns every conversation in persisted order.
// Most-recently-saved new conversations come first; updates keep position.
func (s *BoltStore) List() ([]*Conversation, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(sessionsBucket).Get(conversationsKey); v != nil {
			raw = make([]byte, len(v))
			copy(raw, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading conversations: %w", err)
	}
	return s.decodeCollection(raw), nil
}

// Get returns the conversation with the given id, or ErrNotFound.
func (s *BoltStore) Get(id string) (*Conversation, error) {
	convs, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

// Save upserts a conversation. An existing id is replaced in place,
// preserving its positional index; a new id is prepended to the front.
// The whole collection is rewritten either way.
func (s *BoltStore) Save(conv *Conversation) error {
	convs, err := s.List()
	if err != nil {
		return err
	}

	replaced := false
	for i, c := range convs {
		if c.ID == conv.ID {
			convs[i] = conv
			replaced = true
			break
		}
	}
	if !replaced {
		convs = append([]*Conversation{conv}, convs...)
	}

	if err := s.writeCollection(convs); err != nil {
		return err
	}
	s.logger.Debug("conversation saved",
		"conversation_id", conv.ID,
		"replaced", replaced,
		"total", len(convs))
	return nil
}

// Remove deletes the conversation with the given id. Removing an absent id
// is a no-op, not an error.
func (s *BoltStore) Remove(id string) error {
	convs, err := s.List()
	if err != nil {
		return err
	}

	kept := convs[:0]
	for _, c := range convs {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(convs) {
		return nil
	}

	if err := s.writeCollection(kept); err != nil {
		return err
	}
	s.logger.Debug("conversation removed", "conversation_id", id)
	return nil
}

// Partition splits the collection into pinned conversations and a recent
// list capped at RecentLimit. Recent excludes everything pinned. Store
// order is preserved within both halves.
func (s *BoltStore) Partition() (*Partition, error) {
	convs, err := s.List()
	if err != nil {
		return nil, err
	}

	p := &Partition{}
	for _, c := range convs {
		if c.Pinned {
			p.Pinned = append(p.Pinned, c)
			continue
		}
		if len(p.Recent) < s.recentLimit {
			p.Recent = append(p.Recent, c)
		}
	}
	return p, nil
}

// decodeCollection unmarshals the stored JSON array, dropping entries that
// fail to decode so one corrupt record cannot block the rest of the history.
func (s *BoltStore) decodeCollection(raw []byte) []*Conversation {
	if len(raw) == 0 {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Warn("conversation collection unreadable, starting empty", "error", err)
		return nil
	}

	convs := make([]*Conversation, 0, len(entries))
	for i, entry := range entries {
		var c Conversation
		if err := json.Unmarshal(entry, &c); err != nil || c.ID == "" {
			s.logger.Warn("dropping unreadable conversation entry", "index", i, "error", err)
			continue
		}
		convs = append(convs, &c)
	}
	return convs
}

func (s *BoltStore) writeCollection(convs []*Conversation) error {
	if convs == nil {
		convs = []*Conversation{}
	}
	data, err := json.Marshal(convs)
	if err != nil {
		return fmt.Errorf("encoding conversations: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put(conversationsKey, data)
	})
	if err != nil {
		return fmt.Errorf("writing conversations: %w", err)
	}
	return nil
}

// Token returns the stored compact token string, or "" when absent.
func (s *BoltStore) Token() (string, error) {
	var token string
	err := s.db.View(func(tx *bolt.Tx) error {
		token = string(tx.Bucket(authBucket).Get(tokenKey))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return token, nil
}

// SetToken stores the compact token string.
func (s *BoltStore) SetToken(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(authBucket).Put(tokenKey, []byte(token))
	})
}

// GuestFlag reports whether guest mode is marked locally.
func (s *BoltStore) GuestFlag() (bool, error) {
	var on bool
	err := s.db.View(func(tx *bolt.Tx) error {
		on = string(tx.Bucket(authBucket).Get(guestKey)) == "1"
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("reading guest flag: %w", err)
	}
	return on, nil
}

// SetGuestFlag marks or clears guest mode.
func (s *BoltStore) SetGuestFlag(on bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(authBucket)
		if !on {
			return b.Delete(guestKey)
		}
		return b.Put(guestKey, []byte("1"))
	})
}

// ClearSession removes the token and guest flag together.
func (s *BoltStore) ClearSession() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(authBucket)
		if err := b.Delete(tokenKey); err != nil {
			return err
		}
		return b.Delete(guestKey)
	})
}
