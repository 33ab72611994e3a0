package resume

import "testing"

func TestParseTruthy(t *testing.T) {
	cases := []struct {
		in   any
		want bool
	}{
		{"yes", true},
		{"true", true},
		{true, true},
		{"no", false},
		{"false", false},
		{false, false},
		{"", false},
		{"TRUE", false},
		{"1", false},
		{1, false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := ParseTruthy(tc.in); got != tc.want {
			t.Errorf("ParseTruthy(%#v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
