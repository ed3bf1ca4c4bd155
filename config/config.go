package config

// GammaConfig holds generation API settings.
type GammaConfig struct {
	APIKey          string `json:"apiKey"`
	BaseURL         string `json:"baseUrl,omitempty"`
	ThemeID         string `json:"themeId,omitempty"`
	PollIntervalSec int    `json:"pollIntervalSec"` // delay between status polls
	PollTimeoutSec  int    `json:"pollTimeoutSec"`  // overall polling window
}

// RenderConfig holds image rendering settings.
type RenderConfig struct {
	ChromePath string `json:"chromePath,omitempty"` // empty lets the launcher find a browser
	TokenDir   string `json:"tokenDir,omitempty"`   // directory with tokens.json overrides
}

// Config structure
type Config struct {
	Gamma          GammaConfig  `json:"gamma"`
	Render         RenderConfig `json:"render"`
	TemplateDir    string       `json:"templateDir"`    // fixed-page template decks
	OutputDir      string       `json:"outputDir"`      // assembled decks land here
	LocalCache     bool         `json:"localCache"`     // reuse downloaded generations
	DataCacheDir   string       `json:"dataCacheDir"`   // artifact cache location
	MaxConcurrency int          `json:"maxConcurrency"` // parallel page builds
	DetailedLog    bool         `json:"detailedLog"`
}

// Validate clamps out-of-range values to their defaults.
func (c *Config) Validate() {
	if c.Gamma.PollIntervalSec <= 0 {
		c.Gamma.PollIntervalSec = 5
	}
	if c.Gamma.PollTimeoutSec <= 0 {
		c.Gamma.PollTimeoutSec = 300
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 3
	}
}
