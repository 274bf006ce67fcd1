// internal/crypto/crypto_test.go

package crypto

import (
	"strings"
	"testing"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	c := NewCipher("master passphrase")
	for _, plaintext := range []string{"", "p@ssw0rd", "zażółć gęślą jaźń", strings.Repeat("x", 4096)} {
		blob, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		got, err := c.Decrypt(blob)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if got != plaintext {
			t.Fatalf("roundtrip mismatch: %q != %q", got, plaintext)
		}
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	c := NewCipher("master passphrase")
	a, err := c.Encrypt("same input")
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Encrypt("same input")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	blob, err := NewCipher("right key").Encrypt("secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewCipher("wrong key").Decrypt(blob); err == nil {
		t.Fatal("decryption with wrong key should fail")
	}
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	c := NewCipher("key")
	for _, blob := range []string{"not hex!", "abcd", ""} {
		if _, err := c.Decrypt(blob); err == nil {
			t.Fatalf("malformed blob %q accepted", blob)
		}
	}
}
