package validation

import (
	"testing"
)

func TestValidateAge(t *testing.T) {
	v := NewRequestValidator()

	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"35", 35, false},
		{"130", 130, false},
		{"007", 7, false},
		{"131", -1, true},
		{"-1", -1, true},
		{"", -1, true},
		{" 35", -1, true},
		{"35.5", -1, true},
		{"abc", -1, true},
		{"1000", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := v.ValidateAge(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateAge(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateAge(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateGender(t *testing.T) {
	v := NewRequestValidator()

	valid := []string{"male", "Female", "MALE", "féminin"}
	for _, input := range valid {
		got, err := v.ValidateGender(input)
		if err != nil {
			t.Errorf("ValidateGender(%q) unexpected error: %v", input, err)
		}
		if got != input {
			t.Errorf("ValidateGender(%q) = %q", input, got)
		}
	}

	invalid := []string{"", "male ", "m4le", "male;drop", "non-binary", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}
	for _, input := range invalid {
		if _, err := v.ValidateGender(input); err == nil {
			t.Errorf("ValidateGender(%q) expected error", input)
		}
	}
}

func TestValidateDrugID(t *testing.T) {
	v := NewRequestValidator()

	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"42", 42, false},
		{"1", 1, false},
		{"999999999", 999999999, false},
		{"0", -1, true},
		{"-5", -1, true},
		{"", -1, true},
		{"4 2", -1, true},
		{"1234567890", -1, true},
		{"0x2A", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := v.ValidateDrugID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateDrugID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateDrugID(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
