package gotrue

import (
	"encoding/json"
	"os"
	"path/filepath"

	"linkvault/internal/auth/domain/model"
)

// SessionStorage persists the session between runs.
type SessionStorage interface {
	Load() (*model.Session, error)
	Save(sess *model.Session) error
	Clear() error
}

// FileSessionStorage keeps the session as a JSON file readable only by the
// owner.
type FileSessionStorage struct {
	path string
}

func NewFileSessionStorage(path string) *FileSessionStorage {
	return &FileSessionStorage{path: path}
}

// DefaultSessionPath returns ~/.linkvault/session.json.
func DefaultSessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".linkvault", "session.json"), nil
}

func (f *FileSessionStorage) Load() (*model.Session, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	if sess.AccessToken == "" && sess.RefreshToken == "" {
		return nil, nil
	}
	return &sess, nil
}

func (f *FileSessionStorage) Save(sess *model.Session) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *FileSessionStorage) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
