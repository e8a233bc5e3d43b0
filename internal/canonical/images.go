package canonical

import (
	"strings"

	"github.com/rheath/echojam/internal/store"
)

// IsPlaceholderImage reports whether url is blank or a placeholder asset.
func IsPlaceholderImage(url string) bool {
	u := strings.TrimSpace(url)
	return u == "" || strings.Contains(strings.ToLower(u), "placeholder")
}

// initialImage picks the stored image and source for a newly inserted stop.
func initialImage(candidate string) (*string, store.ImageSource) {
	if IsPlaceholderImage(candidate) {
		return store.NormalizeOptionalText(candidate), store.ImageSourcePlaceholder
	}
	return store.NormalizeOptionalText(candidate), store.ImageSourceLinkSeed
}

// seedImage applies an incoming image to stop. Placeholder candidates and
// authoritative existing sources leave stop untouched. It reports whether
// stop changed.
func seedImage(stop *store.CanonicalStop, candidate string) bool {
	if IsPlaceholderImage(candidate) || stop.ImageSource.Authoritative() {
		return false
	}
	incoming := strings.TrimSpace(candidate)
	if store.Deref(stop.ImageURL) == incoming && stop.ImageSource == store.ImageSourceLinkSeed {
		return false
	}
	stop.ImageURL = &incoming
	stop.ImageSource = store.ImageSourceLinkSeed
	return true
}
