package store

import "strings"

// NormalizeOptionalText trims value and returns nil when nothing is left.
// Every backend applies it to optional text on read and on write.
func NormalizeOptionalText(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}

// NormalizePtr is NormalizeOptionalText for an already optional value.
func NormalizePtr(value *string) *string {
	if value == nil {
		return nil
	}
	return NormalizeOptionalText(*value)
}

// Deref returns the pointed-to string or "".
func Deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func normalizeStop(s CanonicalStop) CanonicalStop {
	s.ImageURL = NormalizePtr(s.ImageURL)
	return s
}

func normalizeAsset(a NarrationAsset) NarrationAsset {
	a.Script = NormalizePtr(a.Script)
	a.AudioURL = NormalizePtr(a.AudioURL)
	a.Error = NormalizePtr(a.Error)
	return a
}

func normalizeJob(j GenerationJob) GenerationJob {
	j.Error = NormalizePtr(j.Error)
	return j
}
