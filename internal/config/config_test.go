package config

import "testing"

func TestParseForcedRoles(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{
			name: "empty",
			raw:  "",
			want: map[string]string{},
		},
		{
			name: "single entry",
			raw:  "alex@example.com:learner",
			want: map[string]string{"alex@example.com": "learner"},
		},
		{
			name: "multiple entries with spaces",
			raw:  " alex@example.com:learner , sam@example.com:guardian ",
			want: map[string]string{
				"alex@example.com": "learner",
				"sam@example.com":  "guardian",
			},
		},
		{
			name: "email is lowercased",
			raw:  "Alex@Example.COM:learner",
			want: map[string]string{"alex@example.com": "learner"},
		},
		{
			name: "unknown role skipped",
			raw:  "alex@example.com:admin,sam@example.com:learner",
			want: map[string]string{"sam@example.com": "learner"},
		},
		{
			name: "missing role skipped",
			raw:  "alex@example.com,sam@example.com:learner",
			want: map[string]string{"sam@example.com": "learner"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseForcedRoles(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseForcedRoles(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for email, role := range tt.want {
				if got[email] != role {
					t.Errorf("ParseForcedRoles(%q)[%q] = %q, want %q", tt.raw, email, got[email], role)
				}
			}
		})
	}
}
