package common

import (
	"fmt"
	"slices"
	"strings"

	"careerlaunch/internal/types"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ParseTone matches a tone name case-insensitively
func ParseTone(name string) (types.Tone, error) {
	for _, tone := range types.Tones {
		if strings.EqualFold(string(tone), strings.TrimSpace(name)) {
			return tone, nil
		}
	}
	names := make([]string, len(types.Tones))
	for i, tone := range types.Tones {
		names[i] = string(tone)
	}
	return "", fmt.Errorf("unsupported tone '%s'. Supported tones: %s", name, strings.Join(names, ", "))
}

// ValidateLocation checks that country is in the catalogue and that state,
// when given, is one of its states
func ValidateLocation(country, state string) error {
	states, ok := types.StatesOf(country)
	if !ok {
		return fmt.Errorf("unknown country '%s'. Run 'careerlaunch locations' for the list", country)
	}
	if state == "" {
		return nil
	}
	for _, s := range states {
		if strings.EqualFold(s, strings.TrimSpace(state)) {
			return nil
		}
	}
	return fmt.Errorf("unknown state '%s' for %s. Run 'careerlaunch locations \"%s\"' for the list", state, country, country)
}
