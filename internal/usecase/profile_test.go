package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/usecase/usecasetest"
)

func newProfileFixture(t *testing.T) (*ProfileService, *usecasetest.UserRepo, int64, int64) {
	t.Helper()
	users := usecasetest.NewUserRepo()
	ada, _ := users.Create(context.Background(), domain.User{Email: "ada@example.com", FullName: "Ada Lovelace", PasswordHash: "plain$analytical"})
	grace, _ := users.Create(context.Background(), domain.User{Email: "grace@example.com", FullName: "Grace Hopper", PasswordHash: "plain$cobol"})

	svc := NewProfileService(users, zaptest.NewLogger(t))
	svc.now = usecasetest.NewClock().Now
	return svc, users, ada.ID, grace.ID
}

func strPtr(s string) *string { return &s }

func TestGetProfileHidesPasswordHash(t *testing.T) {
	svc, _, adaID, _ := newProfileFixture(t)

	user, err := svc.GetProfile(context.Background(), adaID)
	if err != nil {
		t.Fatalf("GetProfile returned error: %v", err)
	}
	if user.PasswordHash != "" {
		t.Fatal("expected password hash to be stripped")
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := svc.GetProfile(context.Background(), 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, users, adaID, _ := newProfileFixture(t)
	ctx := context.Background()

	updated, err := svc.UpdateProfile(ctx, adaID, domain.ProfilePatch{FullName: strPtr("  Augusta Ada King  ")})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if updated.FullName != "Augusta Ada King" || updated.Email != "ada@example.com" {
		t.Fatalf("unexpected profile: %+v", updated)
	}

	if _, err := svc.UpdateProfile(ctx, adaID, domain.ProfilePatch{Email: strPtr("ada@example.com")}); err != nil {
		t.Fatalf("keeping the current email must be allowed: %v", err)
	}

	stored, _ := users.GetByID(ctx, adaID)
	if stored.PasswordHash != "plain$analytical" {
		t.Fatal("profile update must not touch the password hash")
	}
}

func TestUpdateProfileRejections(t *testing.T) {
	svc, _, adaID, _ := newProfileFixture(t)
	ctx := context.Background()

	if _, err := svc.UpdateProfile(ctx, adaID, domain.ProfilePatch{}); !errors.Is(err, ErrNoFieldsToUpdate) {
		t.Fatalf("expected ErrNoFieldsToUpdate, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, adaID, domain.ProfilePatch{FullName: strPtr("   "), Email: strPtr("")}); !errors.Is(err, ErrNoFieldsToUpdate) {
		t.Fatalf("expected blank fields to count as missing, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, adaID, domain.ProfilePatch{Email: strPtr("grace@example.com")}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, 999, domain.ProfilePatch{FullName: strPtr("Nobody")}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
