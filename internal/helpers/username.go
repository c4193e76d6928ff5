package helpers

import (
	"fmt"
	"strconv"
	"strings"

	"xui-fleet/internal/constants"
)

// OwnerPrefix возвращает префикс email, по которому ищутся клиенты владельца
// Например: OwnerPrefix(42) -> "42_"
func OwnerPrefix(ownerID int64) string {
	return fmt.Sprintf("%d%s", ownerID, constants.OwnerSeparator)
}

// FormatClientEmail собирает email клиента из id владельца и имени
// Например: FormatClientEmail(42, "alice") -> "42_alice"
func FormatClientEmail(ownerID int64, name string) string {
	return OwnerPrefix(ownerID) + name
}

// ParseClientEmail splits an email built by FormatClientEmail. ok is false
// for emails that do not start with a numeric owner id.
func ParseClientEmail(email string) (ownerID int64, name string, ok bool) {
	idPart, name, found := strings.Cut(email, constants.OwnerSeparator)
	if !found || idPart == "" {
		return 0, "", false
	}

	ownerID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return ownerID, name, true
}
