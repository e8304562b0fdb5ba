package authpw

import (
	"context"
	"errors"
	"testing"

	"campfire/api/internal/store"
)

type mockProfileStore struct {
	profiles   map[string]store.Profile
	emailIndex map[string]string
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{
		profiles:   make(map[string]store.Profile),
		emailIndex: make(map[string]string),
	}
}

func (m *mockProfileStore) GetProfileByEmail(ctx context.Context, email string) (store.Profile, error) {
	if id, ok := m.emailIndex[email]; ok {
		return m.profiles[id], nil
	}
	return store.Profile{}, errors.New("profile not found")
}

func (m *mockProfileStore) CreateProfile(ctx context.Context, profile store.Profile) error {
	m.profiles[profile.ID] = profile
	m.emailIndex[profile.Email] = profile.ID
	return nil
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockProfileStore())

	t.Run("successful sign up", func(t *testing.T) {
		profile, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "test@example.com",
			Password:    "password123",
			DisplayName: "Test User",
		})
		if err != nil {
			t.Fatalf("SignUp() error = %v", err)
		}
		if profile.ID == "" {
			t.Error("expected profile ID to be set")
		}
		if profile.Role != "user" {
			t.Errorf("expected default role user, got %s", profile.Role)
		}
		if profile.PasswordHash == "password123" {
			t.Error("password stored unhashed")
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "test@example.com",
			Password:    "password456",
			DisplayName: "Other User",
		})
		if !errors.Is(err, ErrEmailTaken) {
			t.Errorf("SignUp() error = %v, want ErrEmailTaken", err)
		}
	})

	t.Run("email normalized", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "  TEST@Example.com ",
			Password:    "password456",
			DisplayName: "Shouting User",
		})
		if !errors.Is(err, ErrEmailTaken) {
			t.Errorf("SignUp() error = %v, want ErrEmailTaken for normalized duplicate", err)
		}
	})

	t.Run("short password", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "short@example.com",
			Password:    "short",
			DisplayName: "Test User",
		})
		if err == nil {
			t.Error("expected error for short password")
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		if _, err := svc.SignUp(ctx, SignUpRequest{}); err == nil {
			t.Error("expected error for missing fields")
		}
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockProfileStore())

	if _, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "test@example.com",
		Password:    "password123",
		DisplayName: "Test User",
	}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	t.Run("successful sign in", func(t *testing.T) {
		profile, err := svc.SignIn(ctx, "test@example.com", "password123")
		if err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		if profile.Email != "test@example.com" {
			t.Errorf("unexpected email %s", profile.Email)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.SignIn(ctx, "test@example.com", "wrongpassword")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("SignIn() error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("non-existent user", func(t *testing.T) {
		_, err := svc.SignIn(ctx, "nobody@example.com", "password123")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("SignIn() error = %v, want ErrInvalidCredentials", err)
		}
	})
}
