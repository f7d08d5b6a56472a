package negotiation

import (
	"errors"
	"strings"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		token   string
		want    Role
		wantErr bool
	}{
		{"leader", RoleLeader, false},
		{"follower", RoleFollower, false},
		{"", RoleUnknown, true},
		{"Leader", RoleUnknown, true},
		{"host", RoleUnknown, true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.token)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) err=%v, wantErr %v", tt.token, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q)=%s, want %s", tt.token, got, tt.want)
		}
	}
}

func TestRole_Offers(t *testing.T) {
	if !RoleLeader.Offers() {
		t.Error("leader does not offer")
	}
	if RoleFollower.Offers() || RoleUnknown.Offers() {
		t.Error("non-leader offers")
	}
}

func TestError_FormatsAndUnwraps(t *testing.T) {
	cause := errors.New("ice agent closed")
	err := NewError("add candidate", ErrNegotiation, cause)

	if !errors.Is(err, ErrNegotiation) || !errors.Is(err, cause) {
		t.Fatalf("errors.Is failed for %v", err)
	}
	if got := err.Error(); got != "add candidate: negotiation error: ice agent closed" {
		t.Fatalf("Error()=%q", got)
	}

	wrapped := WrapError("assign role", ErrRoleConflict, "have leader, got follower")
	if !errors.Is(wrapped, ErrRoleConflict) || errors.Is(wrapped, ErrNegotiation) {
		t.Fatalf("kind mismatch for %v", wrapped)
	}
	if !strings.HasSuffix(wrapped.Error(), "(have leader, got follower)") {
		t.Fatalf("Error()=%q", wrapped.Error())
	}
}
