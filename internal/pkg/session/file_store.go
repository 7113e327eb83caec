package session

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealed layout: magic | salt | nonce | ciphertext.
var sealedMagic = []byte("SCT2")

const saltSize = 16

// argon2id cost; the memory figure is in KiB.
var (
	kdfTime    uint32 = 2
	kdfMemory  uint32 = 19 * 1024
	kdfThreads uint8  = 1
)

// ErrWrongPassphrase is returned when a sealed file cannot be opened.
var ErrWrongPassphrase = errors.New("token file cannot be decrypted with the configured passphrase")

// FileStore keeps all values in one JSON document on disk. When a passphrase is
// set the document is sealed with XChaCha20-Poly1305 under an argon2id key
// salted per file.
type FileStore struct {
	mu         sync.Mutex
	path       string
	passphrase []byte

	// key cache for the salt of the file on disk
	salt []byte
	aead cipherAEAD
}

type cipherAEAD interface {
	NonceSize() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

var _ KeyValueStore = (*FileStore)(nil)

// NewFileStore opens (or lazily creates) the store at path. The key is derived
// on first use, once the salt is known.
func NewFileStore(path, passphrase string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("token file path is required")
	}
	fs := &FileStore{path: path}
	if passphrase != "" {
		fs.passphrase = []byte(passphrase)
	}
	return fs, nil
}

func (f *FileStore) sealed() bool {
	return len(f.passphrase) > 0
}

// cipherFor returns the AEAD keyed for salt, deriving it only when the salt
// changed.
func (f *FileStore) cipherFor(salt []byte) (cipherAEAD, error) {
	if f.aead != nil && bytes.Equal(salt, f.salt) {
		return f.aead, nil
	}
	key := argon2.IDKey(f.passphrase, salt, kdfTime, kdfMemory, kdfThreads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}
	f.salt = append([]byte(nil), salt...)
	f.aead = aead
	return aead, nil
}

func (f *FileStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return "", err
	}
	v, ok := data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (f *FileStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return err
	}
	data[key] = value
	return f.write(data)
}

func (f *FileStore) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(data, k)
	}
	return f.write(data)
}

func (f *FileStore) read() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	if len(raw) == 0 {
		return make(map[string]string), nil
	}
	if bytes.HasPrefix(raw, sealedMagic) {
		if !f.sealed() {
			return nil, ErrWrongPassphrase
		}
		raw, err = f.open(raw[len(sealedMagic):])
		if err != nil {
			return nil, err
		}
	}
	data := make(map[string]string)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}
	return data, nil
}

func (f *FileStore) write(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode token file: %w", err)
	}
	if f.sealed() {
		if raw, err = f.seal(raw); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) seal(plain []byte) ([]byte, error) {
	if f.salt == nil {
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		f.salt = salt
	}
	salt := f.salt
	aead, err := f.cipherFor(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	header := append(append([]byte{}, sealedMagic...), salt...)
	out := append(header, nonce...)
	return aead.Seal(out, nonce, plain, header), nil
}

func (f *FileStore) open(body []byte) ([]byte, error) {
	if len(body) < saltSize {
		return nil, ErrWrongPassphrase
	}
	salt, body := body[:saltSize], body[saltSize:]
	aead, err := f.cipherFor(salt)
	if err != nil {
		return nil, err
	}
	n := aead.NonceSize()
	if len(body) < n {
		return nil, ErrWrongPassphrase
	}
	header := append(append([]byte{}, sealedMagic...), salt...)
	plain, err := aead.Open(nil, body[:n], body[n:], header)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plain, nil
}
