package server

import "testing"

func TestShouldSkipJWT(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		want bool
	}{
		{path: "/webhook", want: true},
		{path: "/ping", want: true},
		{path: "/health", want: true},
		{path: "/auth/login", want: true},
		{path: "/", want: true},
		{path: "/webhook/extra", want: false},
		{path: "/api/buffer/123@c.us/status", want: false},
		{path: "/api/history/123@c.us", want: false},
		{path: "/api/buffer/cleanup", want: false},
	}

	for _, tc := range cases {
		got := shouldSkipJWT(tc.path)
		if got != tc.want {
			t.Fatalf("path=%q want=%v got=%v", tc.path, tc.want, got)
		}
	}
}
