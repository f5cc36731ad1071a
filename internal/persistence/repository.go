package persistence

import (
	"errors"

	"kraken-ladder-go/internal/models"
)

// ErrPresetNotFound is returned when deleting a preset that does not exist.
var ErrPresetNotFound = errors.New("preset not found")

// StateRepository defines the interface for session persistence.
// It abstracts the underlying storage mechanism (e.g., BadgerDB, in-memory)
// from the rest of the application.
type StateRepository interface {
	// SaveState atomically saves the session draft.
	SaveState(state *models.SessionState) error

	// LoadState loads the session draft from storage.
	// If no state is found, it should return (nil, nil).
	LoadState() (*models.SessionState, error)

	// Close gracefully closes the connection to the database.
	Close() error
}

// PresetRepository stores named parameter sets for the daily ladder job.
type PresetRepository interface {
	SavePreset(preset models.Preset) error
	// LoadPreset returns (nil, nil) when the preset does not exist.
	LoadPreset(name string) (*models.Preset, error)
	ListPresets() ([]models.Preset, error)
	DeletePreset(name string) error
}

// NonceStore keeps the highest Kraken nonce handed out, so a restart never
// reuses a lower one.
type NonceStore interface {
	LoadNonce() (uint64, error)
	SaveNonce(nonce uint64) error
}
