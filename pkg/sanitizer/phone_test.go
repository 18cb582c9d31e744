package sanitizer

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		region string
		want   string
	}{
		{
			name:   "valid E.164 format",
			input:  "+972541234567",
			region: "US",
			want:   "+972541234567",
		},
		{
			name:   "with spaces",
			input:  "+972 54 123 4567",
			region: "US",
			want:   "+972541234567",
		},
		{
			name:   "with dashes",
			input:  "+972-54-123-4567",
			region: "US",
			want:   "+972541234567",
		},
		{
			name:   "with parentheses",
			input:  "+1 (212) 555-1234",
			region: "IL",
			want:   "+12125551234",
		},
		{
			name:   "national number uses default region",
			input:  "(212) 555-1234",
			region: "US",
			want:   "+12125551234",
		},
		{
			name:   "lowercase region",
			input:  "(212) 555-1234",
			region: "us",
			want:   "+12125551234",
		},
		{
			name:   "leading and trailing spaces",
			input:  "  +972541234567  ",
			region: "US",
			want:   "+972541234567",
		},
		{
			name:   "mixed special chars",
			input:  " +972-54.123 4567 ",
			region: "US",
			want:   "+972541234567",
		},
		{
			name:   "empty string",
			input:  "",
			region: "US",
			want:   "",
		},
		{
			name:   "only whitespace",
			input:  "   ",
			region: "US",
			want:   "",
		},
		{
			name:   "letters",
			input:  "call me",
			region: "US",
			want:   "",
		},
		{
			name:   "too short",
			input:  "+1 23",
			region: "US",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePhone(tt.input, tt.region)
			if got != tt.want {
				t.Errorf("NormalizePhone(%q, %q) = %q, want %q", tt.input, tt.region, got, tt.want)
			}
		})
	}
}
