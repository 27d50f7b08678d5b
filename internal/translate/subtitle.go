package translate

import (
	"fmt"
	"os"
)

// languageNames maps common ISO-639-1 codes onto the names used in
// translation instructions. Unknown codes pass through unchanged.
var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"ja": "Japanese",
	"ko": "Korean",
	"zh": "Chinese",
	"ar": "Arabic",
	"hi": "Hindi",
}

// LanguageName resolves a language code to its English name.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

// WriteSubtitle writes the text as a single-cue SRT file spanning the
// first minute. Timing is coarse on purpose: the transcript carries no
// per-segment timestamps.
func WriteSubtitle(text, outputPath string) error {
	subtitle := fmt.Sprintf("1\n00:00:00,000 --> 00:01:00,000\n%s", text)
	if err := os.WriteFile(outputPath, []byte(subtitle), 0644); err != nil {
		return fmt.Errorf("write subtitle file: %w", err)
	}
	return nil
}
