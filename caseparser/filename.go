package caseparser

import (
	"path"
	"strconv"
	"strings"
)

// ParseFileName recovers the drug id and name from a raw file name of the form
// <prefix>-<drugId>-<drugName>.json. Slashes in drug names are stored as "--".
// Any leading directory is ignored.
func ParseFileName(name string) (drugID int, drugName string, err error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if !strings.HasSuffix(strings.ToLower(base), ".json") {
		return 0, "", &FileNamingError{Name: name, Reason: "missing .json extension"}
	}
	stem := base[:len(base)-len(".json")]

	parts := strings.SplitN(stem, "-", 3)
	if len(parts) != 3 || parts[0] == "" {
		return 0, "", &FileNamingError{Name: name, Reason: "expected prefix-<drugId>-<drugName>"}
	}

	drugID, convErr := strconv.Atoi(parts[1])
	if convErr != nil || drugID <= 0 {
		return 0, "", &FileNamingError{Name: name, Reason: "drug id is not a positive integer"}
	}

	drugName = strings.TrimSpace(strings.ReplaceAll(parts[2], "--", "/"))
	if drugName == "" {
		return 0, "", &FileNamingError{Name: name, Reason: "empty drug name"}
	}
	return drugID, drugName, nil
}
