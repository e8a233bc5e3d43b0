package canonical

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// namespace seeds every name-based canonical stop id.
var namespace = uuid.MustParse("8d2f4c1e-6a3b-5e7d-9f10-2b4c6d8e0a1f")

// NormalizeCity lower-cases and trims a city key.
func NormalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// NormalizeTitle lower-cases a title and collapses its whitespace.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// CatalogStopID derives the canonical id of a catalog stop. Only the city
// and the stop's catalog-local id take part.
func CatalogStopID(city, localID string) string {
	name := NormalizeCity(city) + "|" + strings.ToLower(strings.TrimSpace(localID))
	return uuid.NewSHA1(namespace, []byte(name)).String()
}

// UserStopID derives the canonical id of a user-authored stop that matched
// no existing stop.
func UserStopID(city, title string, lat, lng float64) string {
	name := fmt.Sprintf("%s|%s|%.6f|%.6f", NormalizeCity(city), NormalizeTitle(title), lat, lng)
	return uuid.NewSHA1(namespace, []byte(name)).String()
}
