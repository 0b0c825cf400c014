package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
)

const (
	assetPrefix = "ds_"
	idLength    = 16
)

// Asset is an interned dataset addressed by content.
type Asset struct {
	ID   string `json:"id"`
	Hash string `json:"hash"`
	Dataset
}

// ContentHash returns the hex SHA-256 of the canonical JSON encoding of
// the normalized schema and rows.
func ContentHash(d *Dataset) (string, error) {
	normalized := d.Normalized()
	data, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("encoding dataset: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Store interns datasets so that identical content is kept once.
type Store struct {
	mu     sync.Mutex
	assets []*Asset
	byID   map[string]*Asset
	refs   map[string]int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byID: make(map[string]*Asset),
		refs: make(map[string]int),
	}
}

// Intern stores d and returns its asset id. Structurally identical
// datasets share one id and one asset.
func (s *Store) Intern(d *Dataset) (string, error) {
	if d == nil {
		return "", fmt.Errorf("intern: nil dataset")
	}
	hash, err := ContentHash(d)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A truncated id that collides with different content grows until unique.
	for n := idLength; n <= len(hash); n += 8 {
		id := assetPrefix + hash[:n]
		existing, ok := s.byID[id]
		if ok && existing.Hash != hash {
			continue
		}
		if !ok {
			existing = &Asset{ID: id, Hash: hash, Dataset: *d.Normalized()}
			s.byID[id] = existing
			s.assets = append(s.assets, existing)
		}
		s.refs[id]++
		return id, nil
	}
	return "", fmt.Errorf("intern: no free id for hash %s", hash)
}

// Get returns the asset with id.
func (s *Store) Get(id string) (*Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.byID[id]
	return asset, ok
}

// Assets returns the interned assets in intern order.
func (s *Store) Assets() []*Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Asset, len(s.assets))
	copy(out, s.assets)
	return out
}

// Refs returns how many times each asset id was interned.
func (s *Store) Refs() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.refs))
	for id, n := range s.refs {
		out[id] = n
	}
	return out
}

// Add registers a previously interned asset, as when loading a bundle.
func (s *Store) Add(asset *Asset) error {
	hash, err := ContentHash(&asset.Dataset)
	if err != nil {
		return err
	}
	if asset.Hash != "" && asset.Hash != hash {
		return fmt.Errorf("asset %s: content hash mismatch", asset.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[asset.ID]; ok {
		return nil
	}
	asset.Hash = hash
	s.byID[asset.ID] = asset
	s.assets = append(s.assets, asset)
	return nil
}
