package kvstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/christlandtech/storefront-client/internal/errors"
	"github.com/christlandtech/storefront-client/session"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

var _ session.KeyValueStore = (*FileStore)(nil)

const (
	saltLength  = 16
	nonceLength = 24
	keyLength   = 32
)

// sealedFile is the on-disk envelope when a passphrase is configured.
type sealedFile struct {
	Salt []byte `json:"salt"`
	Box  []byte `json:"box"` // nonce || secretbox(values)
}

// FileStore persists values to a single JSON file. When a passphrase is set
// the file is sealed with NaCl secretbox under an Argon2id-derived key, so
// tokens are not readable at rest.
type FileStore struct {
	path       string
	passphrase []byte

	mu     sync.Mutex
	values map[string]string // nil until first load
	salt   []byte
	key    *[keyLength]byte
}

// NewFileStore returns a FileStore writing to path. The file and its parent
// directory are created on first write.
func NewFileStore(path, passphrase string) *FileStore {
	fs := &FileStore{path: path}
	if passphrase != "" {
		fs.passphrase = []byte(passphrase)
	}
	return fs
}

func (f *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return "", false, err
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *FileStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return err
	}
	f.values[key] = value
	return f.persist()
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return err
	}
	if _, ok := f.values[key]; !ok {
		return nil
	}
	delete(f.values, key)
	return f.persist()
}

func (f *FileStore) load() error {
	if f.values != nil {
		return nil
	}
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.values = make(map[string]string)
		return nil
	}
	if err != nil {
		return fmt.Errorf("filestore read %s: %w", f.path, err)
	}

	plain := data
	if f.passphrase != nil {
		plain, err = f.open(data)
		if err != nil {
			return err
		}
	}

	values := make(map[string]string)
	if len(plain) > 0 {
		if err := json.Unmarshal(plain, &values); err != nil {
			return fmt.Errorf("filestore decode %s: %w", f.path, err)
		}
	}
	f.values = values
	return nil
}

func (f *FileStore) persist() error {
	plain, err := json.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("filestore encode: %w", err)
	}

	out := plain
	if f.passphrase != nil {
		out, err = f.seal(plain)
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("filestore mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("filestore temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore close: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("filestore rename: %w", err)
	}
	return nil
}

func (f *FileStore) seal(plain []byte) ([]byte, error) {
	if f.key == nil {
		salt := make([]byte, saltLength)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("filestore salt: %w", err)
		}
		f.salt = salt
		f.key = deriveKey(f.passphrase, salt)
	}

	var nonce [nonceLength]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("filestore nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, f.key)
	return json.Marshal(sealedFile{Salt: f.salt, Box: box})
}

func (f *FileStore) open(data []byte) ([]byte, error) {
	var env sealedFile
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrapf(errors.ErrSealedStorage, "filestore %s", f.path)
	}
	if len(env.Salt) != saltLength || len(env.Box) < nonceLength+secretbox.Overhead {
		return nil, errors.Wrapf(errors.ErrSealedStorage, "filestore %s", f.path)
	}

	key := deriveKey(f.passphrase, env.Salt)
	var nonce [nonceLength]byte
	copy(nonce[:], env.Box[:nonceLength])
	plain, ok := secretbox.Open(nil, env.Box[nonceLength:], &nonce, key)
	if !ok {
		return nil, errors.Wrapf(errors.ErrSealedStorage, "filestore %s", f.path)
	}
	f.salt = env.Salt
	f.key = key
	return plain, nil
}

func deriveKey(passphrase, salt []byte) *[keyLength]byte {
	var key [keyLength]byte
	copy(key[:], argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keyLength))
	return &key
}
