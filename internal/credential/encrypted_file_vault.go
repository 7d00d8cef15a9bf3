package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/scrypt"

	"github.com/bentham/bentham/internal/bentherr"
	"github.com/bentham/bentham/internal/config"
	"github.com/bentham/bentham/internal/manifest"
)

const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// EncryptedFileVault is an AES-GCM-encrypted, file-backed Vault (spec
// §4.C), keyed from a master password via scrypt. Dirty writes auto-flush
// unless AutoSave is false.
type EncryptedFileVault struct {
	path     string
	password string
	autoSave bool

	mu    sync.Mutex
	creds map[string]manifest.Credential
	dirty bool
}

// fileEnvelope is the on-disk layout (spec §4.C): ciphertext, iv, salt,
// authTag, algorithm, kdf, version. AES-GCM's Seal appends the auth tag to
// the ciphertext, so AuthTag is folded into Ciphertext on disk; the field
// is kept for format-parity with the spec and is always empty.
type fileEnvelope struct {
	Ciphertext []byte `json:"ciphertext"`
	IV         []byte `json:"iv"`
	Salt       []byte `json:"salt"`
	AuthTag    []byte `json:"authTag,omitempty"`
	Algorithm  string `json:"algorithm"`
	KDF        string `json:"kdf"`
	Version    int    `json:"version"`
}

const (
	envelopeAlgorithm = "AES-256-GCM"
	envelopeKDF       = "scrypt-16384-8-1"
	envelopeVersion   = 1
)

// NewEncryptedFileVault opens (or initializes) an encrypted vault file at
// path, authenticated by password. autoSave controls whether mutating
// operations flush immediately.
func NewEncryptedFileVault(path, password string, autoSave bool) (*EncryptedFileVault, error) {
	if config.IsWeakToken(password) {
		return nil, bentherr.New(bentherr.InvalidRequest, "credential: vault master password is too weak")
	}
	v := &EncryptedFileVault{path: path, password: password, autoSave: autoSave, creds: map[string]manifest.Credential{}}
	if err := v.reload(); err != nil {
		return nil, err
	}
	return v, nil
}

func deriveKey(password string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
}

func (v *EncryptedFileVault) reload() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reloadLocked()
}

func (v *EncryptedFileVault) reloadLocked() error {
	data, err := os.ReadFile(v.path)
	if os.IsNotExist(err) {
		v.creds = map[string]manifest.Credential{}
		return nil
	}
	if err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: read vault file", err)
	}

	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: corrupt vault file", err)
	}
	if env.Version > envelopeVersion {
		return bentherr.New(bentherr.InternalError, "credential: vault file version is newer than supported")
	}

	key, err := deriveKey(v.password, env.Salt)
	if err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: derive key", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: init cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: init gcm", err)
	}

	plaintext, err := gcm.Open(nil, env.IV, env.Ciphertext, nil)
	if err != nil {
		return bentherr.New(bentherr.AuthFailed, "credential: wrong password or corrupted vault file")
	}

	var creds map[string]manifest.Credential
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: unmarshal vault contents", err)
	}
	v.creds = creds
	v.dirty = false
	return nil
}

// Flush writes the current in-memory credential set to disk, encrypted
// under a freshly generated salt and nonce, using write-temp-then-rename.
func (v *EncryptedFileVault) Flush() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.flushLocked()
}

func (v *EncryptedFileVault) flushLocked() error {
	plaintext, err := json.Marshal(v.creds)
	if err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: marshal vault contents", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: generate salt", err)
	}
	key, err := deriveKey(v.password, salt)
	if err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: derive key", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: init cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: init gcm", err)
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: generate iv", err)
	}

	ciphertext := gcm.Seal(nil, iv, plaintext, nil)
	env := fileEnvelope{
		Ciphertext: ciphertext,
		IV:         iv,
		Salt:       salt,
		Algorithm:  envelopeAlgorithm,
		KDF:        envelopeKDF,
		Version:    envelopeVersion,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: marshal envelope", err)
	}

	dir := filepath.Dir(v.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: create vault directory", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(v.path)+".tmp.*")
	if err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return bentherr.Wrap(bentherr.InternalError, "credential: write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return bentherr.Wrap(bentherr.InternalError, "credential: fsync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: close temp file", err)
	}
	if err := os.Rename(tmpPath, v.path); err != nil {
		return bentherr.Wrap(bentherr.InternalError, "credential: atomic rename", err)
	}

	v.dirty = false
	return nil
}

// Reload discards in-memory state and re-reads the file from disk.
func (v *EncryptedFileVault) Reload() error {
	return v.reload()
}

func (v *EncryptedFileVault) maybeAutoSave() error {
	if !v.autoSave {
		return nil
	}
	return v.flushLocked()
}

func (v *EncryptedFileVault) Store(cred manifest.Credential) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.creds[cred.ID] = cred
	v.dirty = true
	return v.maybeAutoSave()
}

func (v *EncryptedFileVault) Update(id string, mutate func(*manifest.Credential)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.creds[id]
	if !ok {
		return ErrNotFound
	}
	mutate(&c)
	v.creds[id] = c
	v.dirty = true
	return v.maybeAutoSave()
}

func (v *EncryptedFileVault) Delete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.creds[id]; !ok {
		return ErrNotFound
	}
	delete(v.creds, id)
	v.dirty = true
	return v.maybeAutoSave()
}

func (v *EncryptedFileVault) Get(id string) (*manifest.Credential, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.creds[id]
	if !ok {
		return nil, false
	}
	return &c, true
}

func (v *EncryptedFileVault) Exists(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.creds[id]
	return ok
}

func (v *EncryptedFileVault) List() []manifest.Credential {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]manifest.Credential, 0, len(v.creds))
	for _, c := range v.creds {
		out = append(out, c)
	}
	return out
}

func (v *EncryptedFileVault) ListByType(t manifest.CredentialType) []manifest.Credential {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := []manifest.Credential{}
	for _, c := range v.creds {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

func (v *EncryptedFileVault) GetBySurface(surfaceID string) []manifest.Credential {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := []manifest.Credential{}
	for _, c := range v.creds {
		if c.SurfaceID == surfaceID {
			out = append(out, c)
		}
	}
	return out
}

func (v *EncryptedFileVault) GetActiveBySurface(surfaceID string, now time.Time) []manifest.Credential {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := []manifest.Credential{}
	for _, c := range v.creds {
		if c.SurfaceID == surfaceID && c.Active(now) {
			out = append(out, c)
		}
	}
	return out
}

// VerifyPassword reports whether candidate decrypts the current vault
// file successfully, without disturbing in-memory state.
func (v *EncryptedFileVault) VerifyPassword(candidate string) bool {
	probe := &EncryptedFileVault{path: v.path, password: candidate, creds: map[string]manifest.Credential{}}
	return probe.reload() == nil
}

// ChangePassword re-encrypts the vault under newPassword, rejecting weak
// passwords via the teacher's zxcvbn-based strength check.
func (v *EncryptedFileVault) ChangePassword(oldPassword, newPassword string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if subtle.ConstantTimeCompare([]byte(oldPassword), []byte(v.password)) != 1 {
		return bentherr.New(bentherr.AuthFailed, "credential: old password does not match")
	}
	if config.IsWeakToken(newPassword) {
		return bentherr.New(bentherr.InvalidRequest, "credential: new password is too weak")
	}
	v.password = newPassword
	v.dirty = true
	return v.flushLocked()
}
