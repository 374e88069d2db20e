package invite

import (
	"strings"
	"testing"
	"time"

	invitemodel "github.com/lawha-app/lawha/backend/internal/model/invite"
)

func testService() *Service {
	return NewService([]byte("test-secret"), "https://lawha.example", time.Hour)
}

func TestGenerateAndValidate(t *testing.T) {
	svc := testService()

	link, err := svc.Generate("p1", invitemodel.PermissionCommenter, time.Hour)
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if link.Token == "" {
		t.Fatal("expected a token")
	}
	if !strings.Contains(link.URL, "p1") || !strings.Contains(link.URL, link.Token) {
		t.Fatalf("link should embed project and token: %s", link.URL)
	}

	parsed, err := svc.Validate(link.Token)
	if err != nil {
		t.Fatalf("Validate err: %v", err)
	}
	if parsed.ProjectID != "p1" {
		t.Fatalf("expected project p1, got %s", parsed.ProjectID)
	}
	if parsed.PermissionLevel != invitemodel.PermissionCommenter {
		t.Fatalf("expected commenter, got %s", parsed.PermissionLevel)
	}
}

func TestGenerateRejectsUnknownPermission(t *testing.T) {
	svc := testService()

	if _, err := svc.Generate("p1", invitemodel.Permission("owner"), time.Hour); err != ErrInvalidPermission {
		t.Fatalf("expected ErrInvalidPermission, got %v", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	svc := testService()

	link, err := svc.Generate("p1", invitemodel.PermissionViewer, time.Millisecond)
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := svc.Validate(link.Token); err != ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	svc := testService()
	other := NewService([]byte("other-secret"), "https://lawha.example", time.Hour)

	link, err := other.Generate("p1", invitemodel.PermissionEditor, time.Hour)
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}

	if _, err := svc.Validate(link.Token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateGarbageToken(t *testing.T) {
	svc := testService()

	if _, err := svc.Validate("not-a-jwt"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestPermissionOrdering(t *testing.T) {
	if !invitemodel.PermissionAdmin.AtLeast(invitemodel.PermissionEditor) {
		t.Fatal("admin should outrank editor")
	}
	if invitemodel.PermissionViewer.AtLeast(invitemodel.PermissionCommenter) {
		t.Fatal("viewer should not outrank commenter")
	}
	if !invitemodel.PermissionEditor.AtLeast(invitemodel.PermissionEditor) {
		t.Fatal("a level grants itself")
	}
}
