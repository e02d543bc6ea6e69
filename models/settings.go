package models

// Settings are the feature flags loaded once at session start.
type Settings struct {
	PurchasesEnabled   bool `json:"purchasesEnabled"`
	AttractionsEnabled bool `json:"attractionsEnabled"`
}

// DefaultSettings fails open.
func DefaultSettings() Settings {
	return Settings{PurchasesEnabled: true, AttractionsEnabled: true}
}
