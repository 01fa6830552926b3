package auth

import "fmt"

// Capability names a permission granted per role.
type Capability string

const (
	CapManageUsers          Capability = "manage_users"
	CapViewUsers            Capability = "view_users"
	CapSuspendUsers         Capability = "suspend_users"
	CapPublishAnnouncements Capability = "publish_announcements"
	CapViewAnnouncements    Capability = "view_announcements"
	CapViewCases            Capability = "view_cases"
	CapViewOwnCase          Capability = "view_own_case"
	CapSubmitCase           Capability = "submit_case"
	CapViewPlatformMetrics  Capability = "view_platform_metrics"
)

// Capabilities enumerates every known capability.
var Capabilities = []Capability{
	CapManageUsers,
	CapViewUsers,
	CapSuspendUsers,
	CapPublishAnnouncements,
	CapViewAnnouncements,
	CapViewCases,
	CapViewOwnCase,
	CapSubmitCase,
	CapViewPlatformMetrics,
}

// adminOnly capabilities must never be grantable to any other role.
var adminOnly = []Capability{CapManageUsers}

// Reason classifies an authorization decision.
type Reason string

const (
	ReasonAllowed      Reason = "allowed"
	ReasonDenied       Reason = "denied"
	ReasonUnrecognized Reason = "unrecognized"
)

// Decision is the transient allow/deny verdict for one capability check.
// Never persisted.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
}

// defaultCapabilities is the static role→capability table. Read-only after
// gate construction; request handling may only add checks, never subtract
// grants.
var defaultCapabilities = map[Role][]Capability{
	RoleAdmin: {
		CapManageUsers,
		CapViewUsers,
		CapSuspendUsers,
		CapPublishAnnouncements,
		CapViewAnnouncements,
		CapViewCases,
		CapViewPlatformMetrics,
	},
	RolePlatformManager: {
		CapPublishAnnouncements,
		CapViewAnnouncements,
		CapViewCases,
		CapViewPlatformMetrics,
	},
	RoleCSR: {
		CapViewAnnouncements,
		CapViewCases,
		CapViewOwnCase,
	},
	RolePersonInNeed: {
		CapViewAnnouncements,
		CapViewOwnCase,
		CapSubmitCase,
	},
	RoleUserAdmin: {
		CapViewUsers,
		CapSuspendUsers,
		CapViewAnnouncements,
	},
}

// Gate answers capability checks against the static table.
type Gate struct {
	table map[Role]map[Capability]struct{}
	known map[Capability]struct{}
}

// NewGate builds the gate from the built-in table.
func NewGate() (*Gate, error) {
	return NewGateFromTable(defaultCapabilities)
}

// NewGateFromTable validates the table at construction: every known role must
// have an entry and admin-only capabilities stay exclusive to admin.
func NewGateFromTable(table map[Role][]Capability) (*Gate, error) {
	for _, role := range Roles {
		if _, ok := table[role]; !ok {
			return nil, fmt.Errorf("auth: capability table missing role %q", role)
		}
	}
	g := &Gate{
		table: make(map[Role]map[Capability]struct{}, len(table)),
		known: make(map[Capability]struct{}, len(Capabilities)),
	}
	for _, c := range Capabilities {
		g.known[c] = struct{}{}
	}
	for role, caps := range table {
		if !role.Valid() {
			return nil, fmt.Errorf("auth: capability table has unknown role %q", role)
		}
		set := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			if _, ok := g.known[c]; !ok {
				return nil, fmt.Errorf("auth: capability table has unknown capability %q", c)
			}
			if role != RoleAdmin && isAdminOnly(c) {
				return nil, fmt.Errorf("auth: capability %q is not grantable to role %q", c, role)
			}
			set[c] = struct{}{}
		}
		g.table[role] = set
	}
	return g, nil
}

// Authorize decides whether the role may exercise the capability. Pure,
// deterministic and side-effect free. Unknown roles and capabilities deny
// with ReasonUnrecognized, never allow.
func (g *Gate) Authorize(role Role, capability Capability) Decision {
	caps, ok := g.table[role]
	if !ok {
		return Decision{Allowed: false, Reason: ReasonUnrecognized}
	}
	if _, ok := g.known[capability]; !ok {
		return Decision{Allowed: false, Reason: ReasonUnrecognized}
	}
	if _, ok := caps[capability]; !ok {
		return Decision{Allowed: false, Reason: ReasonDenied}
	}
	return Decision{Allowed: true, Reason: ReasonAllowed}
}

// RoleCapabilities returns a copy of the capability set granted to a role.
func (g *Gate) RoleCapabilities(role Role) []Capability {
	caps, ok := g.table[role]
	if !ok {
		return nil
	}
	out := make([]Capability, 0, len(caps))
	for _, c := range Capabilities {
		if _, granted := caps[c]; granted {
			out = append(out, c)
		}
	}
	return out
}

func isAdminOnly(c Capability) bool {
	for _, a := range adminOnly {
		if a == c {
			return true
		}
	}
	return false
}
