package types

import "time"

// HTTPConfig holds shared HTTP settings used by every stage that talks to
// Letterboxd.
type HTTPConfig struct {
	// BaseURL is the site root used to resolve relative film and person links.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Token is an optional bearer token sent with every request.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// RequestDelay is the pause between consecutive requests (default 500ms).
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay"`
}

// RetryConfig bounds the retry loop for transient fetch failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt (default 4).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// BaseDelay is the first backoff delay; it doubles on each retry.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`
}

// SourceKind selects which Letterboxd collection an extraction run reads.
type SourceKind string

const (
	// SourceClub reads a film club list (exports prefixed "fc_").
	SourceClub SourceKind = "club"
	// SourceProfile reads a member's watched films (exports prefixed "<username>_").
	SourceProfile SourceKind = "profile"
)

// ExtractionConfig holds settings for one extraction run.
type ExtractionConfig struct {
	HTTPConfig  `yaml:",inline"`
	RetryConfig `yaml:",inline"`

	// Source selects club list or profile extraction.
	Source SourceKind `json:"source" yaml:"source"`

	// ListURL is the club list URL (SourceClub).
	ListURL string `json:"list_url" yaml:"list_url"`

	// Username is the profile owner (SourceProfile).
	Username string `json:"username" yaml:"username"`

	// OutDir is the directory the export tables are written to.
	OutDir string `json:"out_dir" yaml:"out_dir"`

	// PriorDir holds the export to merge with; defaults to OutDir.
	PriorDir string `json:"prior_dir" yaml:"prior_dir"`

	// Suffix is appended to every table file name (e.g. "_new").
	Suffix string `json:"suffix" yaml:"suffix"`

	// MaxPages stops pagination early when positive.
	MaxPages int `json:"max_pages" yaml:"max_pages"`
}

// Prefix returns the table name prefix for the configured source.
func (c ExtractionConfig) Prefix() string {
	if c.Source == SourceProfile && c.Username != "" {
		return c.Username + "_"
	}
	return "fc_"
}

// AnalysisConfig holds settings for the analysis stage.
type AnalysisConfig struct {
	// InputDir holds the raw export tables.
	InputDir string `json:"input_dir" yaml:"input_dir"`

	// OutputDir receives the analytical tables.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Prefix is the table name prefix shared by inputs and outputs.
	Prefix string `json:"prefix" yaml:"prefix"`
}

// ImageCacheConfig holds settings for the avatar image cache.
type ImageCacheConfig struct {
	HTTPConfig  `yaml:",inline"`
	RetryConfig `yaml:",inline"`

	// AnalysisDir holds the popular people tables and receives the mapping table.
	AnalysisDir string `json:"analysis_dir" yaml:"analysis_dir"`

	// ImagesDir receives downloaded images.
	ImagesDir string `json:"images_dir" yaml:"images_dir"`

	// Prefix is the table name prefix.
	Prefix string `json:"prefix" yaml:"prefix"`

	// Force re-downloads images that already exist.
	Force bool `json:"force" yaml:"force"`

	// HTMLDir optionally holds saved person pages used when a fetch is refused.
	HTMLDir string `json:"html_dir,omitempty" yaml:"html_dir,omitempty"`

	// UseBrowser renders person pages in a headless browser.
	UseBrowser bool `json:"use_browser" yaml:"use_browser"`

	// ProfileDir is the persistent browser profile directory.
	ProfileDir string `json:"profile_dir,omitempty" yaml:"profile_dir,omitempty"`

	// Headed shows the browser window.
	Headed bool `json:"headed" yaml:"headed"`
}

// ReportConfig holds settings for the report server.
type ReportConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`

	// AnalysisDir holds the analytical tables.
	AnalysisDir string `json:"analysis_dir" yaml:"analysis_dir"`

	// ImagesDir holds cached avatar images.
	ImagesDir string `json:"images_dir" yaml:"images_dir"`

	// Prefix is the table name prefix.
	Prefix string `json:"prefix" yaml:"prefix"`

	// Title is shown in the page header.
	Title string `json:"title" yaml:"title"`
}
