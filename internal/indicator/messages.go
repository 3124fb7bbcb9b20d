package indicator

import (
	"os"
	"strings"
)

type messages struct {
	recording    string
	transcribing string
	failure      string
}

var catalog = map[string]messages{
	"en": {
		recording:    "Recording…",
		transcribing: "Transcribing…",
		failure:      "Speech recognition error",
	},
	"fr": {
		recording:    "Enregistrement…",
		transcribing: "Transcription…",
		failure:      "Erreur de reconnaissance vocale",
	},
	"de": {
		recording:    "Aufnahme…",
		transcribing: "Transkription…",
		failure:      "Spracherkennungsfehler",
	},
}

// localeFromEnv follows the POSIX precedence for message catalogs.
func localeFromEnv() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

// messagesFor maps a locale such as "fr_CA.UTF-8" to its catalog, falling
// back to English.
func messagesFor(locale string) messages {
	lang := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(lang, "_.@-"); i >= 0 {
		lang = lang[:i]
	}
	if m, ok := catalog[lang]; ok {
		return m
	}
	return catalog["en"]
}
