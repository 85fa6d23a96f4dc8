// Package validation checks the query parameters of the read API.
package validation

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/giygas/cureid-api/caseparser"
	"github.com/giygas/cureid-api/interfaces"
)

var (
	digitsRegex = regexp.MustCompile(`^[0-9]+$`)
	genderRegex = regexp.MustCompile(`^\p{L}+$`)
)

const (
	maxGenderLength  = 32
	maxDrugIDDigits  = 9
	maxAgeDigitCount = 3
)

// RequestValidator implements interfaces.RequestValidator.
type RequestValidator struct{}

// NewRequestValidator creates a request validator.
func NewRequestValidator() interfaces.RequestValidator {
	return &RequestValidator{}
}

// ValidateAge accepts a whole number of years between 0 and caseparser.MaxAge.
func (v *RequestValidator) ValidateAge(input string) (int, error) {
	if input == "" {
		return -1, fmt.Errorf("age is required")
	}
	if len(input) > maxAgeDigitCount || !digitsRegex.MatchString(input) {
		return -1, fmt.Errorf("age must be a whole number between 0 and %d", caseparser.MaxAge)
	}
	age, err := strconv.Atoi(input)
	if err != nil || age > caseparser.MaxAge {
		return -1, fmt.Errorf("age must be a whole number between 0 and %d", caseparser.MaxAge)
	}
	return age, nil
}

// ValidateGender accepts a non-empty word made of letters only.
func (v *RequestValidator) ValidateGender(input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("gender is required")
	}
	if len(input) > maxGenderLength {
		return "", fmt.Errorf("gender too long: maximum %d characters", maxGenderLength)
	}
	if !genderRegex.MatchString(input) {
		return "", fmt.Errorf("gender contains invalid characters. Only letters are allowed")
	}
	return input, nil
}

// ValidateDrugID accepts a positive integer.
func (v *RequestValidator) ValidateDrugID(input string) (int, error) {
	if input == "" {
		return -1, fmt.Errorf("drugId is required")
	}
	if len(input) > maxDrugIDDigits || !digitsRegex.MatchString(input) {
		return -1, fmt.Errorf("drugId must be a positive integer")
	}
	id, err := strconv.Atoi(input)
	if err != nil || id <= 0 {
		return -1, fmt.Errorf("drugId must be a positive integer")
	}
	return id, nil
}
