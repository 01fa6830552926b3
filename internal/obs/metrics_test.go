package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/metrics":                    "/metrics",
		"/v1/users/42":                "/v1/users/:id",
		"/v1/users/42/status":         "/v1/users/:id/status",
		"/v1/users/42/extra":          "/v1/users/42/extra",
		"/v1/users":                   "/v1/users",
		"/v1/announcements":           "/v1/announcements",
		"/v1/cases?limit=10":          "/v1/cases",
		"/v1/auth/session":            "/v1/auth/session",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
