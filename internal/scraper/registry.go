// Package scraper discovers funding announcements on agency listing sites and
// records them as pending jobs. Agencies are configured declaratively; adding
// a site means adding a registry entry, not code.
package scraper

import (
	"embed"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/agencies.yaml
var agenciesYAML embed.FS

// Registry holds the configuration for all agency listing sites.
type Registry struct {
	Agencies []AgencyConfig `yaml:"agencies"`
}

// FetchConfig tunes HTTP behavior per agency.
type FetchConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"` // Default: 30
	MaxRetries     int     `yaml:"max_retries,omitempty"`     // Default: 3
	DomainDelayMs  int     `yaml:"domain_delay_ms,omitempty"` // Default: 1000
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`
	UserAgent      string  `yaml:"user_agent,omitempty"`
}

// ListSelectors are the CSS selectors for one agency's listing rows.
type ListSelectors struct {
	Row        string `yaml:"row"`
	Link       string `yaml:"link"`
	LinkAttr   string `yaml:"link_attr,omitempty"` // default: href
	Title      string `yaml:"title"`
	Type       string `yaml:"type,omitempty"`     // announcement type column
	PostedDate string `yaml:"posted_date,omitempty"`
	Deadline   string `yaml:"deadline,omitempty"` // listing deadline column
	Ministry   string `yaml:"ministry,omitempty"`
}

// DetailSelectors locate content and attachments on an announcement page.
type DetailSelectors struct {
	Attachment     string `yaml:"attachment,omitempty"`      // links to attached files
	AttachmentAttr string `yaml:"attachment_attr,omitempty"` // default: href
	Body           string `yaml:"body,omitempty"`            // inline announcement body
}

// AgencyConfig defines one listing site.
type AgencyConfig struct {
	ID                  string          `yaml:"id"`
	Name                string          `yaml:"name"`
	Ministry            string          `yaml:"ministry,omitempty"`
	ListURL             string          `yaml:"list_url"`
	AnnouncementIDParam string          `yaml:"announcement_id_param,omitempty"` // query param carrying the stable id
	MaxPages            int             `yaml:"max_pages,omitempty"`
	PaginationNext      string          `yaml:"pagination_next,omitempty"` // CSS selector for the next-page link
	Selectors           ListSelectors   `yaml:"selectors"`
	Detail              DetailSelectors `yaml:"detail,omitempty"`
	Fetch               FetchConfig     `yaml:"fetch,omitempty"`
}

// Host returns the agency's listing hostname for collector domain scoping.
func (a AgencyConfig) Host() (string, error) {
	u, err := url.Parse(a.ListURL)
	if err != nil {
		return "", fmt.Errorf("agency %s: bad list_url: %w", a.ID, err)
	}
	return u.Hostname(), nil
}

// LoadRegistry reads the embedded agency registry. Values support ${ENV}
// expansion so credentials stay out of the file.
func LoadRegistry() (*Registry, error) {
	raw, err := agenciesYAML.ReadFile("config/agencies.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded registry: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks required fields and id uniqueness.
func (r *Registry) Validate() error {
	if len(r.Agencies) == 0 {
		return fmt.Errorf("registry has no agencies")
	}
	seen := map[string]bool{}
	for _, a := range r.Agencies {
		if a.ID == "" {
			return fmt.Errorf("agency with empty id")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agency id %q", a.ID)
		}
		seen[a.ID] = true
		if a.ListURL == "" {
			return fmt.Errorf("agency %s: list_url required", a.ID)
		}
		if a.Selectors.Row == "" || a.Selectors.Link == "" || a.Selectors.Title == "" {
			return fmt.Errorf("agency %s: selectors.row, selectors.link and selectors.title required", a.ID)
		}
	}
	return nil
}

// Agency returns the config for one agency id.
func (r *Registry) Agency(id string) (AgencyConfig, bool) {
	for _, a := range r.Agencies {
		if a.ID == id {
			return a, true
		}
	}
	return AgencyConfig{}, false
}
