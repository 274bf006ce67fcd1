// internal/models/session_test.go

package models

import (
	"testing"
	"time"
)

func validSession() Session {
	return Session{
		ID:       "id-1",
		Name:     "prod-web",
		Host:     "web1.example.com",
		Port:     22,
		Username: "deploy",
		AuthMode: AuthPassword,
	}
}

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession("dev", "dev.example.com", "ops")
	if s.ID == "" {
		t.Fatal("expected generated id")
	}
	if s.Port != 22 {
		t.Fatalf("expected default port 22, got %d", s.Port)
	}
	if s.AuthMode != AuthPassword {
		t.Fatalf("expected default auth mode password, got %q", s.AuthMode)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("fresh session should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Session)
		wantErr bool
	}{
		{"valid password", func(s *Session) {}, false},
		{"valid publickey", func(s *Session) {
			s.AuthMode = AuthPublicKey
			s.KeyPath = "~/.ssh/id_ed25519"
		}, false},
		{"empty id", func(s *Session) { s.ID = "" }, true},
		{"empty name", func(s *Session) { s.Name = "" }, true},
		{"empty host", func(s *Session) { s.Host = "" }, true},
		{"empty username", func(s *Session) { s.Username = "" }, true},
		{"port zero", func(s *Session) { s.Port = 0 }, true},
		{"port too high", func(s *Session) { s.Port = 70000 }, true},
		{"publickey without key", func(s *Session) { s.AuthMode = AuthPublicKey }, true},
		{"unknown auth mode", func(s *Session) { s.AuthMode = "pam" }, true},
		{"forward port without target", func(s *Session) { s.LocalForwardPort = 8080 }, true},
		{"forward port out of range", func(s *Session) {
			s.LocalForwardPort = 99999
			s.RemoteForwardAddr = "localhost:80"
		}, true},
		{"valid forward", func(s *Session) {
			s.LocalForwardPort = 8080
			s.RemoteForwardAddr = "localhost:80"
		}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSession()
			tc.mutate(&s)
			err := s.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	s := validSession()
	s.LastConnectedAt = &now

	clone := s.Clone()
	if clone.LastConnectedAt == s.LastConnectedAt {
		t.Fatal("clone shares the LastConnectedAt pointer")
	}
	if !clone.LastConnectedAt.Equal(now) {
		t.Fatal("clone lost the timestamp value")
	}

	later := now.Add(time.Hour)
	*s.LastConnectedAt = later
	if clone.LastConnectedAt.Equal(later) {
		t.Fatal("mutating the original leaked into the clone")
	}
}

func TestAddr(t *testing.T) {
	s := validSession()
	if got := s.Addr(); got != "web1.example.com:22" {
		t.Fatalf("unexpected addr: %s", got)
	}
	s.Host = "::1"
	s.Port = 2222
	if got := s.Addr(); got != "[::1]:2222" {
		t.Fatalf("expected bracketed ipv6 addr, got %s", got)
	}
}

func TestNewFolder(t *testing.T) {
	f := NewFolder("production", "")
	if f.ID == "" {
		t.Fatal("expected generated id")
	}
	if f.Name != "production" {
		t.Fatalf("unexpected name: %s", f.Name)
	}
}
