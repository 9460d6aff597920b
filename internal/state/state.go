package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/logging"
)

// Manager handles reading and writing of the local settings file.
type Manager struct {
	path   string
	format string
}

// NewManager returns a manager for path. An empty format is derived from the
// file extension.
func NewManager(path, format string) *Manager {
	if format == "" {
		format = FormatFromPath(path)
	}
	return &Manager{
		path:   path,
		format: format,
	}
}

func (m *Manager) Path() string   { return m.path }
func (m *Manager) Format() string { return m.format }

// Read loads the settings document from the configured path.
// If the file is encrypted, it is transparently decrypted before loading.
func (m *Manager) Read(ctx context.Context) (*ir.Document, error) {
	// A missing file is an empty workspace
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		logging.Debug("settings file not found, starting empty", "path", m.path)
		return ir.NewDocument(), nil
	}

	raw, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", m.path, err)
	}

	content, err := DecryptState(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt settings: %w", err)
	}

	doc, err := Unmarshal(content, m.format)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings from %s: %w", m.path, err)
	}
	return doc, nil
}

// Write saves the settings document to the configured path.
// If POSTNOME_STATE_ENCRYPTION_KEY is set, the file is transparently encrypted.
func (m *Manager) Write(ctx context.Context, doc *ir.Document) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	content, err := Marshal(doc, m.format)
	if err != nil {
		return err
	}

	encrypted, err := EncryptState(content)
	if err != nil {
		return fmt.Errorf("failed to encrypt settings: %w", err)
	}

	// Write through a temp file so a failed write never truncates the settings
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, encrypted, 0644); err != nil {
		return fmt.Errorf("failed to write settings file %s: %w", m.path, err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace settings file %s: %w", m.path, err)
	}

	logging.Debug("settings written", "path", m.path, "format", m.format)
	return nil
}
