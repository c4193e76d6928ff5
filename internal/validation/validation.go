package validation

import (
	"fmt"
	"regexp"
	"strings"

	"xui-fleet/internal/constants"
	apperrors "xui-fleet/internal/errors"
)

var namePattern = regexp.MustCompile(fmt.Sprintf(`^[a-z]{%d,%d}$`, constants.MinNameLength, constants.MaxNameLength))

// NormalizeName trims and lowercases a client name typed by a user and checks
// it is made of latin letters only. lowered reports whether the input had to
// be lowercased.
func NormalizeName(input string) (name string, lowered bool, err error) {
	name = strings.TrimSpace(input)
	if lower := strings.ToLower(name); lower != name {
		name = lower
		lowered = true
	}

	if !namePattern.MatchString(name) {
		return "", lowered, &apperrors.ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("must be %d-%d latin letters (a-z)", constants.MinNameLength, constants.MaxNameLength),
		}
	}

	return name, lowered, nil
}

// ValidateInboundCount checks that a server does not list more inbounds than allowed
func ValidateInboundCount(serverID string, count, max int) error {
	if count > max {
		return &apperrors.ValidationError{
			Field:   serverID + " inbounds",
			Message: fmt.Sprintf("%d configured, at most %d allowed", count, max),
		}
	}
	return nil
}
