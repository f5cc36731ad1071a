package persistence

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"kraken-ladder-go/internal/models"
)

var (
	sessionKey   = []byte("session_state")
	nonceKey     = []byte("kraken_nonce")
	presetPrefix = []byte("preset/")
)

// BadgerRepository is the BadgerDB implementation of StateRepository,
// PresetRepository and NonceStore.
type BadgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository opens (or creates) a BadgerDB database at dbPath.
func NewBadgerRepository(dbPath string) (*BadgerRepository, error) {
	return open(badger.DefaultOptions(dbPath))
}

// NewInMemoryRepository returns a repository that lives only as long as the process.
func NewInMemoryRepository() (*BadgerRepository, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*BadgerRepository, error) {
	// Badger's own logging would interleave with ours. Errors are still returned.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerRepository{db: db}, nil
}

// SaveState stores the draft part of the session as JSON.
func (r *BadgerRepository) SaveState(state *models.SessionState) error {
	return r.put(sessionKey, state.Draft())
}

// LoadState returns (nil, nil) when no session was saved yet.
func (r *BadgerRepository) LoadState() (*models.SessionState, error) {
	var state models.SessionState
	found, err := r.get(sessionKey, &state)
	if err != nil || !found {
		return nil, err
	}
	return &state, nil
}

// SavePreset creates or replaces a preset. Names are case-insensitive.
func (r *BadgerRepository) SavePreset(preset models.Preset) error {
	if strings.TrimSpace(preset.Name) == "" {
		return errors.New("preset name is required")
	}
	return r.put(presetKey(preset.Name), preset)
}

// LoadPreset returns (nil, nil) when the preset does not exist.
func (r *BadgerRepository) LoadPreset(name string) (*models.Preset, error) {
	var preset models.Preset
	found, err := r.get(presetKey(name), &preset)
	if err != nil || !found {
		return nil, err
	}
	return &preset, nil
}

// ListPresets returns every preset sorted by name.
func (r *BadgerRepository) ListPresets() ([]models.Preset, error) {
	var presets []models.Preset
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = presetPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var p models.Preset
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return err
			}
			presets = append(presets, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(presets, func(i, j int) bool {
		return strings.ToUpper(presets[i].Name) < strings.ToUpper(presets[j].Name)
	})
	return presets, nil
}

// DeletePreset removes a preset, or returns ErrPresetNotFound.
func (r *BadgerRepository) DeletePreset(name string) error {
	key := presetKey(name)
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrPresetNotFound, name)
			}
			return err
		}
		return txn.Delete(key)
	})
}

// LoadNonce returns 0 when no nonce was stored yet.
func (r *BadgerRepository) LoadNonce() (uint64, error) {
	var nonce uint64
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nonceKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("nonce value has %d bytes", len(val))
			}
			nonce = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	return nonce, err
}

// SaveNonce stores the nonce if it is higher than the stored one.
func (r *BadgerRepository) SaveNonce(nonce uint64) error {
	return r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(nonceKey)
		switch {
		case err == nil:
			var current uint64
			if err := item.Value(func(val []byte) error {
				if len(val) == 8 {
					current = binary.BigEndian.Uint64(val)
				}
				return nil
			}); err != nil {
				return err
			}
			if current >= nonce {
				return nil
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, nonce)
		return txn.Set(nonceKey, buf)
	})
}

// Close gracefully closes the connection to the database.
func (r *BadgerRepository) Close() error {
	return r.db.Close()
}

func (r *BadgerRepository) put(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// get reports found=false instead of an error when the key is missing.
func (r *BadgerRepository) get(key []byte, v interface{}) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("stored value is empty")
			}
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func presetKey(name string) []byte {
	return append(append([]byte{}, presetPrefix...), strings.ToUpper(strings.TrimSpace(name))...)
}
