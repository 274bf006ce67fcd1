// internal/ssh/hostkey_test.go

package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

func testHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	key, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func testRemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(192, 0, 2, 10), Port: 22}
}

func TestKnownHostsPolicyRejectsUnknownByDefault(t *testing.T) {
	policy := &KnownHostsPolicy{Path: filepath.Join(t.TempDir(), "known_hosts")}
	callback, err := policy.Callback()
	if err != nil {
		t.Fatal(err)
	}

	err = callback("example.com:22", testRemoteAddr(), testHostKey(t))
	if err == nil {
		t.Fatal("unknown host accepted without OnUnknown")
	}
}

func TestKnownHostsPolicyTrustOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	key := testHostKey(t)

	asked := 0
	policy := &KnownHostsPolicy{
		Path: path,
		OnUnknown: func(hostname, fingerprint string) bool {
			asked++
			if fingerprint == "" {
				t.Error("empty fingerprint passed to OnUnknown")
			}
			return true
		},
	}
	callback, err := policy.Callback()
	if err != nil {
		t.Fatal(err)
	}

	if err := callback("example.com:22", testRemoteAddr(), key); err != nil {
		t.Fatalf("first contact rejected: %v", err)
	}
	if asked != 1 {
		t.Fatalf("expected one OnUnknown call, got %d", asked)
	}

	// Zaakceptowany klucz jest trwale zapisany - świeży callback
	// akceptuje bez pytania.
	policy.OnUnknown = func(hostname, fingerprint string) bool {
		t.Error("OnUnknown called for a recorded host")
		return false
	}
	callback, err = policy.Callback()
	if err != nil {
		t.Fatal(err)
	}
	if err := callback("example.com:22", testRemoteAddr(), key); err != nil {
		t.Fatalf("recorded host rejected: %v", err)
	}
}

func TestKnownHostsPolicyDetectsKeyChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	policy := &KnownHostsPolicy{
		Path:      path,
		OnUnknown: func(hostname, fingerprint string) bool { return true },
	}
	callback, err := policy.Callback()
	if err != nil {
		t.Fatal(err)
	}
	if err := callback("example.com:22", testRemoteAddr(), testHostKey(t)); err != nil {
		t.Fatal(err)
	}

	// Inny klucz dla znanego hosta to twarda odmowa, bez pytania.
	policy.OnUnknown = func(hostname, fingerprint string) bool {
		t.Error("OnUnknown called for a key mismatch")
		return true
	}
	callback, err = policy.Callback()
	if err != nil {
		t.Fatal(err)
	}
	if err := callback("example.com:22", testRemoteAddr(), testHostKey(t)); err == nil {
		t.Fatal("changed host key accepted")
	}
}

func TestKnownHostsPolicyCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssh", "known_hosts")
	policy := &KnownHostsPolicy{Path: path}
	if _, err := policy.Callback(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("known_hosts file not created: %v", err)
	}
}

func TestInsecureAcceptAllPolicy(t *testing.T) {
	policy := &InsecureAcceptAllPolicy{Log: zerolog.Nop()}
	callback, err := policy.Callback()
	if err != nil {
		t.Fatal(err)
	}
	if err := callback("anything:22", testRemoteAddr(), testHostKey(t)); err != nil {
		t.Fatalf("accept-all policy rejected a key: %v", err)
	}
}
