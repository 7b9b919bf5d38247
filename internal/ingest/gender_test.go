package ingest

import "testing"

func TestNormalizeGender(t *testing.T) {
	cases := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"M", GenderMale, false},
		{"m", GenderMale, false},
		{"F", GenderFemale, false},
		{"f", GenderFemale, false},
		{"X", 0, true},
		{"Male", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := NormalizeGender(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeGender(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeGender(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeGender(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestGenderLiteral(t *testing.T) {
	if got := GenderLiteral(GenderMale); got != "M" {
		t.Errorf("GenderLiteral(0) = %q, want M", got)
	}
	if got := GenderLiteral(GenderFemale); got != "F" {
		t.Errorf("GenderLiteral(1) = %q, want F", got)
	}
}
