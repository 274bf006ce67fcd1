// internal/storage/store_test.go

package storage

import (
	"path/filepath"
	"testing"

	"sshTerm/internal/crypto"
	"sshTerm/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sessions.db"), crypto.NewCipher("test passphrase"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testStoreSession(name string) models.Session {
	s := models.NewSession(name, name+".example.com", "deploy")
	return s
}

func TestSessionCRUD(t *testing.T) {
	store := openTestStore(t)

	sess := testStoreSession("alpha")
	if err := store.CreateSession(&sess); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := store.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || got.Name != "alpha" {
		t.Fatalf("unexpected session: %+v", got)
	}

	got.Host = "alpha2.example.com"
	if err := store.UpdateSession(got); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	updated, err := store.GetSession(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Host != "alpha2.example.com" {
		t.Fatalf("update not persisted: %s", updated.Host)
	}

	if err := store.DeleteSession(sess.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	gone, err := store.GetSession(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gone != nil {
		t.Fatal("session still present after delete")
	}
}

func TestGetSessionMissingReturnsNil(t *testing.T) {
	store := openTestStore(t)
	got, err := store.GetSession("no-such-id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestCreateSessionValidates(t *testing.T) {
	store := openTestStore(t)
	sess := testStoreSession("bad")
	sess.Host = ""
	if err := store.CreateSession(&sess); err == nil {
		t.Fatal("invalid session accepted")
	}
}

func TestSessionsSortedByName(t *testing.T) {
	store := openTestStore(t)
	for _, name := range []string{"zulu", "alpha", "mike"} {
		sess := testStoreSession(name)
		if err := store.CreateSession(&sess); err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := store.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "mike", "zulu"}
	if len(sessions) != len(want) {
		t.Fatalf("expected %d sessions, got %d", len(want), len(sessions))
	}
	for i, name := range want {
		if sessions[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, sessions[i].Name)
		}
	}
}

func TestPasswordRoundtrip(t *testing.T) {
	store := openTestStore(t)
	sess := testStoreSession("secure")
	if err := store.CreateSession(&sess); err != nil {
		t.Fatal(err)
	}

	if err := store.SetSessionPassword(sess.ID, "hunter2"); err != nil {
		t.Fatalf("set password failed: %v", err)
	}

	stored, err := store.GetSession(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.EncryptedPassword == "" {
		t.Fatal("password not stored")
	}
	if stored.EncryptedPassword == "hunter2" {
		t.Fatal("password stored in plaintext")
	}

	plain, err := store.SessionPassword(stored)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if plain != "hunter2" {
		t.Fatalf("unexpected password: %q", plain)
	}
}

func TestSessionPasswordEmptyWhenUnset(t *testing.T) {
	store := openTestStore(t)
	sess := testStoreSession("nopass")
	plain, err := store.SessionPassword(&sess)
	if err != nil {
		t.Fatal(err)
	}
	if plain != "" {
		t.Fatalf("expected empty password, got %q", plain)
	}
}

func TestTouchConnected(t *testing.T) {
	store := openTestStore(t)
	sess := testStoreSession("touched")
	if err := store.CreateSession(&sess); err != nil {
		t.Fatal(err)
	}
	if err := store.TouchConnected(sess.ID); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetSession(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastConnectedAt == nil {
		t.Fatal("LastConnectedAt not set")
	}
}

func TestSetAutoConnect(t *testing.T) {
	store := openTestStore(t)
	sess := testStoreSession("auto")
	if err := store.CreateSession(&sess); err != nil {
		t.Fatal(err)
	}

	if err := store.SetAutoConnect(sess.ID, true); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetSession(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.AutoConnect {
		t.Fatal("auto connect flag not set")
	}
}

func TestDeleteFolderDetachesSessions(t *testing.T) {
	store := openTestStore(t)

	folder := models.NewFolder("production", "")
	if err := store.CreateFolder(&folder); err != nil {
		t.Fatal(err)
	}

	sess := testStoreSession("grouped")
	sess.FolderID = folder.ID
	if err := store.CreateSession(&sess); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteFolder(folder.ID); err != nil {
		t.Fatal(err)
	}

	folders, err := store.Folders()
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 0 {
		t.Fatalf("folder still present: %+v", folders)
	}

	got, err := store.GetSession(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("session deleted together with folder")
	}
	if got.FolderID != "" {
		t.Fatalf("session still attached to folder %q", got.FolderID)
	}
}
