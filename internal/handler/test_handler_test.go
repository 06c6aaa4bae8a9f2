package handler

import (
	"testing"

	"github.com/learnspire/testtrack-backend/internal/model"
	"github.com/learnspire/testtrack-backend/internal/service"
)

func TestAuthorFilter(t *testing.T) {
	regular := &service.Claims{
		UserID:      7,
		Permissions: []string{string(model.PermissionTestsRead), string(model.PermissionTestsWrite)},
	}
	if got := authorFilter(regular); got != 7 {
		t.Fatalf("filter = %d, want 7 (own tests only)", got)
	}

	super := &service.Claims{
		UserID:      7,
		Permissions: []string{string(model.PermissionTestsWriteAll)},
	}
	if got := authorFilter(super); got != 0 {
		t.Fatalf("filter = %d, want 0 (no author restriction)", got)
	}
}
