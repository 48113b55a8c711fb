package enums

import (
	"fmt"
	"strings"
)

// Gender is the audience a product is cut for.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderUnisex Gender = "unisex"
)

var validGenders = []Gender{GenderMale, GenderFemale, GenderUnisex}

func (g Gender) IsValid() bool {
	for _, candidate := range validGenders {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGender accepts any casing.
func ParseGender(value string) (Gender, error) {
	normalized := Gender(strings.ToLower(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid gender %q", value)
}
