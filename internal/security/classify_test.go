package security

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		fragment string
		want     bool
	}{
		{"/api/v1/health", false},
		{"/api/v1/security/events?limit=10", false},
		{"/search?q=' OR 1=1 --", true},
		{"/items?id=1 UNION SELECT password FROM users", true},
		{"/page?next=<script>alert(1)</script>", true},
		{"/files/../../etc/passwd", true},
		{"/redirect?to=javascript:alert(1)", true},
		{"/img?src=x%3Cscript%3E", true},
		{"/api/v1/sessions", false},
		{"", false},
	}
	for _, tc := range tests {
		t.Run(tc.fragment, func(t *testing.T) {
			if got := Classify(tc.fragment); got != tc.want {
				t.Errorf("Classify(%q) = %v, want %v", tc.fragment, got, tc.want)
			}
		})
	}
}
