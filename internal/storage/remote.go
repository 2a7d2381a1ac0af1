package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const remoteTimeout = 10 * time.Second

// RemoteKV is the per-user encrypted tier. Values are sealed with
// AES-256-GCM before leaving the process; the key is derived from the
// user secret, so the remote store only ever sees ciphertext.
type RemoteKV struct {
	baseURL string
	userID  string
	key     []byte
	client  *http.Client
}

// NewRemoteKV builds a remote store client for one user.
func NewRemoteKV(baseURL, userID, userSecret string) *RemoteKV {
	salt := sha256.Sum256([]byte("coinfox:" + userID))
	key := pbkdf2.Key([]byte(userSecret), salt[:], 4096, 32, sha256.New)

	return &RemoteKV{
		baseURL: baseURL,
		userID:  userID,
		key:     key,
		client:  &http.Client{Timeout: remoteTimeout},
	}
}

func (r *RemoteKV) keyURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", r.baseURL, url.PathEscape(r.userID), url.PathEscape(key))
}

// Get fetches and decrypts a value. A 404 means the key is absent.
func (r *RemoteKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.keyURL(key), nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("remote get %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("remote get %s: unexpected status %d", key, resp.StatusCode)
	}

	sealed, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}

	plain, err := r.open(sealed)
	if err != nil {
		return nil, false, fmt.Errorf("remote get %s: %w", key, err)
	}
	return plain, true, nil
}

// Put encrypts and uploads a value.
func (r *RemoteKV) Put(ctx context.Context, key string, value []byte) error {
	sealed, err := r.seal(value)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.keyURL(key), bytes.NewReader(sealed))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote put %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remote put %s: unexpected status %d", key, resp.StatusCode)
	}
	return nil
}

// seal encrypts plaintext as nonce||ciphertext.
func (r *RemoteKV) seal(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func (r *RemoteKV) open(sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed payload too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
