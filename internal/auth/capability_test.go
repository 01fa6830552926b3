package auth

import "testing"

func TestGateKnownRolesComplete(t *testing.T) {
	gate, err := NewGate()
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	for _, role := range Roles {
		if caps := gate.RoleCapabilities(role); len(caps) == 0 {
			t.Fatalf("role %s has no capabilities", role)
		}
	}
}

func TestGateScenarioCSR(t *testing.T) {
	gate, err := NewGate()
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	if d := gate.Authorize(RoleCSR, CapViewOwnCase); !d.Allowed {
		t.Fatalf("csr should view own case, got %+v", d)
	}
	if d := gate.Authorize(RoleCSR, CapManageUsers); d.Allowed {
		t.Fatalf("csr must not manage users, got %+v", d)
	}
}

func TestGateManageUsersAdminOnly(t *testing.T) {
	gate, err := NewGate()
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	for _, role := range Roles {
		d := gate.Authorize(role, CapManageUsers)
		if role == RoleAdmin {
			if !d.Allowed {
				t.Fatalf("admin must manage users")
			}
			continue
		}
		if d.Allowed {
			t.Fatalf("role %s must not manage users", role)
		}
	}
}

func TestGateUnknownInputsDeny(t *testing.T) {
	gate, err := NewGate()
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	if d := gate.Authorize(Role("intern"), CapViewUsers); d.Allowed || d.Reason != ReasonUnrecognized {
		t.Fatalf("unknown role must deny unrecognized, got %+v", d)
	}
	if d := gate.Authorize(RoleAdmin, Capability("launch_rockets")); d.Allowed || d.Reason != ReasonUnrecognized {
		t.Fatalf("unknown capability must deny unrecognized, got %+v", d)
	}
}

func TestGateDeterministic(t *testing.T) {
	gate, err := NewGate()
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	first := gate.Authorize(RolePlatformManager, CapPublishAnnouncements)
	for i := 0; i < 100; i++ {
		if got := gate.Authorize(RolePlatformManager, CapPublishAnnouncements); got != first {
			t.Fatalf("decision changed between calls: %+v vs %+v", first, got)
		}
	}
}

func TestGateFromTableValidation(t *testing.T) {
	incomplete := map[Role][]Capability{
		RoleAdmin: {CapManageUsers},
	}
	if _, err := NewGateFromTable(incomplete); err == nil {
		t.Fatalf("expected error for missing roles")
	}

	leaked := map[Role][]Capability{}
	for _, role := range Roles {
		leaked[role] = []Capability{CapViewAnnouncements}
	}
	leaked[RoleUserAdmin] = append(leaked[RoleUserAdmin], CapManageUsers)
	if _, err := NewGateFromTable(leaked); err == nil {
		t.Fatalf("expected error for admin capability leaking to user_admin")
	}
}
