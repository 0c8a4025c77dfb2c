package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/users/0xabc/credit":        "/v1/users/:addr/credit",
		"/v1/users/0xabc/loans":         "/v1/users/:addr/loans",
		"/v1/users/0xabc/loans/active":  "/v1/users/:addr/loans/active",
		"/v1/merchants/0xdef":           "/v1/merchants/:addr",
		"/v1/loans":                     "/v1/loans",
		"/v1/loans?limit=10":            "/v1/loans",
		"/v1/pool":                      "/v1/pool",
		"/v1/users/0xabc/wallet-bonus": "/v1/users/:addr/wallet-bonus",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
