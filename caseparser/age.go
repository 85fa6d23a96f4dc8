package caseparser

import (
	"strconv"
	"strings"

	"github.com/giygas/cureid-api/caseparser/entities"
)

// MaxAge is the highest age bound accepted from an "N - M" range.
const MaxAge = 130

// ParseAgeRange turns a free-form age range into bounds. It never fails:
//
//	""              -> 0..100
//	"<1 year"       -> 0..1
//	"30 - 39 years" -> 30..39
//	anything else   -> 90..100 (the open "90+ years" bracket)
func ParseAgeRange(text string) entities.Age {
	text = strings.TrimSpace(text)
	if text == "" {
		return entities.Age{Lower: 0, Upper: 100}
	}
	if strings.EqualFold(text, "<1 year") {
		return entities.Age{Lower: 0, Upper: 1}
	}

	if parts := strings.Split(text, "-"); len(parts) == 2 {
		lower, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		upperFields := strings.Fields(parts[1])
		if err1 == nil && len(upperFields) > 0 {
			upper, err2 := strconv.Atoi(upperFields[0])
			if err2 == nil && 0 <= lower && lower <= upper && upper <= MaxAge {
				return entities.Age{Lower: lower, Upper: upper}
			}
		}
	}

	return entities.Age{Lower: 90, Upper: 100}
}
