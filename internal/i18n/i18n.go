// Package i18n holds the spoken phrase catalogs.
package i18n

import (
	"fmt"
	"strings"
)

// Language is a catalog language.
type Language string

const (
	FR Language = "fr"
	EN Language = "en"
)

// Phrase keys.
const (
	Welcome            = "welcome"
	CameraOpening      = "camera_opening"
	NoPhotoTaken       = "no_photo_taken"
	ScanCancelled      = "scan_cancelled"
	AnalysisInProgress = "analysis_in_progress"
	FaceRejected       = "face_rejected"
	AnalysisError      = "analysis_error"
	ResultHint         = "result_hint"
	UnknownObject      = "unknown_object"
	BanknoteDetected   = "banknote_detected"
	BanknoteProbable   = "banknote_probable"
	CurrencyFC         = "currency_fc"
	CurrencyUSD        = "currency_usd"
)

var translations = map[Language]map[string]string{
	FR: {
		Welcome:            "Bienvenue sur Ni nghapi. Touchez l'écran n'importe où pour scanner un billet.",
		CameraOpening:      "Ouverture de la caméra",
		NoPhotoTaken:       "Aucune photo prise.",
		ScanCancelled:      "Scan annulé. Balayez pour réessayer.",
		AnalysisInProgress: "Analyse en cours",
		FaceRejected:       "Attention. Ceci n'est pas un billet, c'est un visage. Veuillez scanner un billet.",
		AnalysisError:      "Erreur lors de l'analyse. Veuillez réessayer.",
		ResultHint:         "Appuyez pour répéter. Balayez pour scanner un autre billet.",
		UnknownObject:      "Je ne reconnais pas cet objet. Veuillez présenter un billet bien éclairé.",
		BanknoteDetected:   "Billet détecté : %s",
		BanknoteProbable:   "Billet probable : %s. Confiance faible.",
		CurrencyFC:         "Francs Congolais",
		CurrencyUSD:        "Dollars",
	},
	EN: {
		Welcome:            "Welcome to Ni nghapi. Touch anywhere on the screen to scan a banknote.",
		CameraOpening:      "Opening the camera",
		NoPhotoTaken:       "No photo taken.",
		ScanCancelled:      "Scan cancelled. Swipe to try again.",
		AnalysisInProgress: "Analysis in progress",
		FaceRejected:       "Warning. This is not a banknote, it is a face. Please scan a banknote.",
		AnalysisError:      "Error during analysis. Please try again.",
		ResultHint:         "Tap to repeat. Swipe to scan another banknote.",
		UnknownObject:      "I do not recognize this object. Please present a well lit banknote.",
		BanknoteDetected:   "Banknote detected: %s",
		BanknoteProbable:   "Probable banknote: %s. Low confidence.",
		CurrencyFC:         "Congolese Francs",
		CurrencyUSD:        "Dollars",
	},
}

// Catalog resolves phrase keys for one language.
type Catalog struct {
	lang Language
}

// New returns the catalog for a locale such as "fr-FR" or "en". Unknown
// locales fall back to French.
func New(locale string) *Catalog {
	return &Catalog{lang: ParseLocale(locale)}
}

// ParseLocale maps a BCP 47 style locale to a catalog language.
func ParseLocale(locale string) Language {
	base := strings.ToLower(locale)
	if i := strings.IndexAny(base, "-_"); i >= 0 {
		base = base[:i]
	}
	if _, ok := translations[Language(base)]; ok {
		return Language(base)
	}
	return FR
}

// Language returns the catalog language.
func (c *Catalog) Language() Language {
	return c.lang
}

// T returns the phrase for key, or the key itself when missing.
func (c *Catalog) T(key string) string {
	if s, ok := translations[c.lang][key]; ok {
		return s
	}
	if s, ok := translations[FR][key]; ok {
		return s
	}
	return key
}

// Tf formats the phrase for key with args.
func (c *Catalog) Tf(key string, args ...any) string {
	return fmt.Sprintf(c.T(key), args...)
}
