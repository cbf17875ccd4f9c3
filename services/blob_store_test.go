package services

import (
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"ia-assistant-platform/internal/config"
)

func testBlobStore(t *testing.T) *BlobStore {
	t.Helper()
	store, err := NewBlobStore(&config.Config{
		FileStorageDir:    t.TempDir(),
		SessionSecret:     "test-secret",
		BlobURLTTLMinutes: 60,
	})
	if err != nil {
		t.Fatalf("NewBlobStore() error: %v", err)
	}
	return store
}

func parseSignedURL(t *testing.T, signed string) (name string, expires int64, sig string) {
	t.Helper()
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	name = strings.TrimPrefix(u.Path, "/media/")
	expires, err = strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	if err != nil {
		t.Fatalf("parse expires: %v", err)
	}
	return name, expires, u.Query().Get("sig")
}

func TestBlobStoreSaveAndSignRoundtrip(t *testing.T) {
	store := testBlobStore(t)

	name, err := store.Save("doc123", "report.PDF", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if name != "doc123.pdf" {
		t.Errorf("stored name = %q, want doc123.pdf", name)
	}

	signed := store.SignedURL(name)
	gotName, expires, sig := parseSignedURL(t, signed)
	if err := store.Verify(gotName, expires, sig); err != nil {
		t.Errorf("Verify() rejected a freshly signed URL: %v", err)
	}

	if _, err := store.Path(name); err != nil {
		t.Errorf("Path() error for saved blob: %v", err)
	}
}

func TestBlobStoreVerifyExpired(t *testing.T) {
	store := testBlobStore(t)
	expired := time.Now().Add(-time.Minute).Unix()
	sig := store.sign("doc.pdf", expired)
	if err := store.Verify("doc.pdf", expired, sig); err == nil {
		t.Error("expired link must be rejected")
	}
}

func TestBlobStoreVerifyTampered(t *testing.T) {
	store := testBlobStore(t)
	signed := store.SignedURL("doc.pdf")
	_, expires, sig := parseSignedURL(t, signed)

	if err := store.Verify("other.pdf", expires, sig); err == nil {
		t.Error("signature must bind the blob name")
	}
	if err := store.Verify("doc.pdf", expires+100, sig); err == nil {
		t.Error("signature must bind the expiry")
	}
}

func TestBlobStoreRejectsTraversal(t *testing.T) {
	store := testBlobStore(t)
	for _, name := range []string{"../secret", "a/b.pdf", "a\\b.pdf", ""} {
		if _, err := store.Path(name); err == nil {
			t.Errorf("Path(%q) should be rejected", name)
		}
		if err := store.Verify(name, time.Now().Add(time.Hour).Unix(), "sig"); err == nil {
			t.Errorf("Verify(%q) should be rejected", name)
		}
	}
	if _, err := store.Save("..", "x.pdf", strings.NewReader("x")); err == nil {
		t.Error("Save with traversal doc id should be rejected")
	}
}

func TestBlobStoreSignDeterministic(t *testing.T) {
	store := testBlobStore(t)
	expires := time.Now().Add(time.Hour).Unix()
	a := store.sign("doc.pdf", expires)
	b := store.sign("doc.pdf", expires)
	if a != b {
		t.Error("signature must be deterministic for same inputs")
	}
	if a == store.sign("doc.pdf", expires+1) {
		t.Error("different expiry must change the signature")
	}
}
