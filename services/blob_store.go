package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ia-assistant-platform/internal/config"
)

// BlobStore keeps uploaded source files on local disk and hands out
// time-limited HMAC-signed URLs for retrieving them, so the raw storage
// directory is never exposed directly.
type BlobStore struct {
	dir    string
	secret []byte
	ttl    time.Duration
}

func NewBlobStore(cfg *config.Config) (*BlobStore, error) {
	if err := os.MkdirAll(cfg.FileStorageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &BlobStore{
		dir:    cfg.FileStorageDir,
		secret: []byte(cfg.SessionSecret),
		ttl:    time.Duration(cfg.BlobURLTTLMinutes) * time.Minute,
	}, nil
}

// Save stores the reader's content under docID plus the original extension
// and returns the stored name.
func (b *BlobStore) Save(docID, originalName string, r io.Reader) (string, error) {
	name := docID + strings.ToLower(filepath.Ext(originalName))
	if !validBlobName(name) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}

	f, err := os.Create(filepath.Join(b.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return name, nil
}

// SignedURL returns a relative media URL valid for the configured TTL.
func (b *BlobStore) SignedURL(name string) string {
	expires := time.Now().Add(b.ttl).Unix()
	sig := b.sign(name, expires)
	return fmt.Sprintf("/media/%s?expires=%d&sig=%s", name, expires, sig)
}

// Verify checks the signature and expiry for a media request.
func (b *BlobStore) Verify(name string, expires int64, sig string) error {
	if !validBlobName(name) {
		return fmt.Errorf("invalid blob name")
	}
	if time.Now().Unix() > expires {
		return fmt.Errorf("link expired")
	}
	expected := b.sign(name, expires)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

// Path returns the on-disk location for a verified blob name.
func (b *BlobStore) Path(name string) (string, error) {
	if !validBlobName(name) {
		return "", fmt.Errorf("invalid blob name")
	}
	path := filepath.Join(b.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("blob not found: %w", err)
	}
	return path, nil
}

func (b *BlobStore) sign(name string, expires int64) string {
	mac := hmac.New(sha256.New, b.secret)
	mac.Write([]byte(name + "|" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// validBlobName rejects anything that could escape the storage directory.
func validBlobName(name string) bool {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return false
	}
	return true
}
