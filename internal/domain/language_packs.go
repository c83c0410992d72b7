package domain

// LanguagePackOption describes one installable OCR recognition language.
type LanguagePackOption struct {
	Code      string            `json:"code"`
	Name      string            `json:"name"`
	Packages  map[string]string `json:"packages,omitempty"`
	Installed bool              `json:"installed"`
	Enabled   bool              `json:"enabled"`
}
