// Package secrets manages the persisted per-file secret registry.
//
// Each protected source file gets one secret, generated lazily the first
// time the file is encountered and never regenerated afterwards: access
// credentials shared for a page must keep working across incremental
// rebuilds even when the page's content changes. Secrets are keyed by
// source path identity, so renaming a file mints a fresh secret.
package secrets

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/Y006/phd-site/internal/errors"
)

// Alphabet is the character set secrets are drawn from.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultSecretLength is the generated secret length when none is
// configured.
const DefaultSecretLength = 16

// Entry is one registry record for a protected source file.
type Entry struct {
	Name      string    `json:"name"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry is the whole-document secret store backed by a single JSON
// file. All mutation goes through GetOrCreate, which exposes no update
// path: the first write for a key wins.
type Registry struct {
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Files     map[string]Entry `json:"files"`

	mu           sync.Mutex
	secretLength int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		CreatedAt:    time.Now(),
		Files:        make(map[string]Entry),
		secretLength: DefaultSecretLength,
	}
}

// Load reads the registry document from path. A missing file yields a new
// empty registry; a malformed document is an error, since silently
// regenerating secrets would invalidate every credential already shared.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, errors.NewIOError(path, "reading secret registry", err)
	}

	reg := New()
	if err := json.Unmarshal(data, reg); err != nil {
		return nil, errors.NewIOError(path, "parsing secret registry", err)
	}
	if reg.Files == nil {
		reg.Files = make(map[string]Entry)
	}
	return reg, nil
}

// SetSecretLength overrides the length of newly generated secrets.
// Existing entries are unaffected.
func (r *Registry) SetSecretLength(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > 0 {
		r.secretLength = n
	}
}

// GetOrCreate returns the secret for path, generating and recording one
// when the path has no entry yet. The display name is only stored on
// creation; the first-seen name wins on subsequent calls.
func (r *Registry) GetOrCreate(path, displayName string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.Files[path]; ok {
		return entry.Password, nil
	}

	length := r.secretLength
	if length <= 0 {
		length = DefaultSecretLength
	}
	secret, err := Generate(length)
	if err != nil {
		return "", err
	}

	r.Files[path] = Entry{
		Name:      displayName,
		Password:  secret,
		CreatedAt: time.Now(),
	}
	return secret, nil
}

// Lookup returns the entry for path without creating one.
func (r *Registry) Lookup(path string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.Files[path]
	return entry, ok
}

// Len returns the number of registered files.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Files)
}

// Save stamps the updated-at timestamp and writes the whole document to
// path. The file is written with owner-only permissions since it holds
// plaintext secrets.
func (r *Registry) Save(path string) error {
	r.mu.Lock()
	r.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(r, "", "  ")
	r.mu.Unlock()
	if err != nil {
		return errors.NewInternalError("encoding secret registry", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return errors.NewIOError(path, "writing secret registry", err)
	}
	return nil
}

// Generate draws a secret of length n from Alphabet using a
// cryptographically secure random source.
func Generate(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(Alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.NewInternalError("generating secret", err)
		}
		out[i] = Alphabet[idx.Int64()]
	}
	return string(out), nil
}
