package rbac

import "testing"

func TestValidateAction(t *testing.T) {
	r := &RBACService{}

	tests := []struct {
		resource string
		action   string
		want     bool
	}{
		{"problem", "create", true},
		{"problem", "manage", true},
		{"submission", "read:own", true},
		{"problem", "edit:any", true},
		{"worker", "rejudge:own", true},
		{"submission", "fly:own", false},
		{"submission", "read:everywhere", false},
		{"problem", "teleport", false},
		{"problem", "read:own:extra", false},
	}

	for _, tt := range tests {
		t.Run(tt.resource+"/"+tt.action, func(t *testing.T) {
			got := r.ValidateAction(tt.resource, tt.action)
			if got != tt.want {
				t.Errorf("ValidateAction(%q, %q) = %v, want %v", tt.resource, tt.action, got, tt.want)
			}
		})
	}
}

func TestIsSystemRole(t *testing.T) {
	r := &RBACService{}

	systemRoles := []string{"user", "setter", "moderator", "admin", "super_admin"}
	for _, role := range systemRoles {
		if !r.isSystemRole(role) {
			t.Errorf("expected %q to be a system role", role)
		}
	}

	if r.isSystemRole("custom_role") {
		t.Errorf("expected custom_role to not be a system role")
	}
}

func TestGetRoleDescription(t *testing.T) {
	r := &RBACService{}

	if desc := r.getRoleDescription("admin"); desc == "" || desc == "Custom role" {
		t.Errorf("expected a specific description for admin, got %q", desc)
	}
	if desc := r.getRoleDescription("totally_unknown"); desc != "Custom role" {
		t.Errorf("expected fallback description for unknown role, got %q", desc)
	}
}
