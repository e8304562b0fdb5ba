package rbac

import "testing"

func TestBannedDeniedEverything(t *testing.T) {
	for _, action := range []Action{ActionCreate, ActionEdit, ActionDelete} {
		for _, owner := range []bool{true, false} {
			if Can(RoleBanned, action, owner) {
				t.Fatalf("banned role allowed %s (owner=%v)", action, owner)
			}
		}
	}
}

func TestAdminAllowedEverything(t *testing.T) {
	for _, action := range []Action{ActionCreate, ActionEdit, ActionDelete} {
		if !Can(RoleAdmin, action, false) {
			t.Fatalf("admin denied %s on non-owned resource", action)
		}
	}
}

func TestOwnershipGatesMutation(t *testing.T) {
	for _, role := range []Role{RoleUser, RoleMentor} {
		if !Can(role, ActionCreate, false) {
			t.Fatalf("%s denied create", role)
		}
		if !Can(role, ActionEdit, true) {
			t.Fatalf("%s denied edit of own resource", role)
		}
		if Can(role, ActionDelete, false) {
			t.Fatalf("%s allowed delete of someone else's resource", role)
		}
	}
}

func TestUnknownRoleDenied(t *testing.T) {
	if Can(Role("superuser"), ActionCreate, true) {
		t.Fatal("unknown role allowed create")
	}
}

func TestCanHostFocusGroup(t *testing.T) {
	cases := map[Role]bool{
		RoleUser:   false,
		RoleMentor: true,
		RoleAdmin:  true,
		RoleBanned: false,
	}
	for role, want := range cases {
		if got := CanHostFocusGroup(role); got != want {
			t.Fatalf("CanHostFocusGroup(%s) = %v, want %v", role, got, want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("mentor") != RoleMentor {
		t.Fatal("mentor not preserved")
	}
	if Normalize("moderator") != RoleUser {
		t.Fatal("unknown role should normalize to user")
	}
}
