package database

import "testing"

func TestSimpleProtocolURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@h/db", "postgres://u:p@h/db?default_query_exec_mode=simple_protocol"},
		{"postgres://u:p@h/db?sslmode=disable", "postgres://u:p@h/db?sslmode=disable&default_query_exec_mode=simple_protocol"},
		{"postgres://h/db?default_query_exec_mode=exec", "postgres://h/db?default_query_exec_mode=exec"},
	}
	for _, tt := range tests {
		if got := simpleProtocolURL(tt.in); got != tt.want {
			t.Errorf("simpleProtocolURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
