package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/okian/quotaboard/internal/adapters/oauth"
)

// File permissions for stored tokens.
const (
	tokenDirMode  fs.FileMode = 0o700
	tokenFileMode fs.FileMode = 0o600
)

// DefaultTokenPath returns ~/.salesforce_tokens/ae_dashboard.json.
func DefaultTokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".salesforce_tokens", "ae_dashboard.json"), nil
}

// FileTokenStore keeps tokens in a JSON file readable only by the owner.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore returns a store writing to path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string { return s.path }

type tokenFile struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	InstanceURL  string `json:"instance_url"`
}

// Save writes the file through a temp file and rename.
func (s *FileTokenStore) Save(_ context.Context, tok oauth.Token) error {
	if !tok.Complete() {
		return ErrInvalidToken
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, tokenDirMode); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	data, err := json.MarshalIndent(tokenFile{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		InstanceURL:  tok.InstanceURL,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write tokens: %w", err)
	}
	if err := tmp.Chmod(tokenFileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("restrict token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

// Load reads the file. Missing, malformed or incomplete files all report
// ErrNotFound so callers fall back to a fresh login.
func (s *FileTokenStore) Load(_ context.Context) (oauth.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return oauth.Token{}, ErrNotFound
	}
	if err != nil {
		return oauth.Token{}, fmt.Errorf("read tokens: %w", err)
	}

	var f tokenFile
	if err := json.Unmarshal(data, &f); err != nil {
		return oauth.Token{}, fmt.Errorf("%w: malformed token file: %v", ErrNotFound, err)
	}
	tok := oauth.Token{AccessToken: f.AccessToken, RefreshToken: f.RefreshToken, InstanceURL: f.InstanceURL}
	if !tok.Complete() {
		return oauth.Token{}, fmt.Errorf("%w: incomplete token file", ErrNotFound)
	}
	return tok, nil
}

// Clear deletes the file.
func (s *FileTokenStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove tokens: %w", err)
	}
	return nil
}
