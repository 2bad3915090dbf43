// Package catalog maintains the set of known gauge sites: a built-in
// default list, an optional JSON override file, and live discovery against
// the USGS site service.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
)

// Site is one gauge station: the USGS site code and a display label.
type Site struct {
	Label string `json:"label"`
	Code  string `json:"code"`
}

// defaultSites are the upper Colorado River gauges the service tracks when
// no override file is present.
func defaultSites() []Site {
	return []Site{
		{Label: "Colorado River near Cameo (09095500)", Code: "09095500"},
		{Label: "Gunnison River near Grand Junction (09152500)", Code: "09152500"},
		{Label: "Colorado River at CO-UT State Line (09163500)", Code: "09163500"},
	}
}

// Catalog is an immutable, label-sorted site list.
type Catalog struct {
	sites []Site
}

// configFile mirrors the override file shape: a label-to-code mapping under
// the usgs_sources key.
type configFile struct {
	USGSSources map[string]string `json:"usgs_sources"`
}

// Load reads the site catalog from the JSON file at path. A missing file is
// not an error; the built-in defaults apply. A malformed or empty file also
// falls back to the defaults, with a warning.
func Load(path string, logger *slog.Logger) *Catalog {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("site config unreadable, using defaults", "path", path, "error", err)
		}
		return &Catalog{sites: defaultSites()}
	}

	var cfg configFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		logger.Warn("site config malformed, using defaults", "path", path, "error", err)
		return &Catalog{sites: defaultSites()}
	}

	var sites []Site
	for label, code := range cfg.USGSSources {
		label, code = strings.TrimSpace(label), strings.TrimSpace(code)
		if label == "" || code == "" {
			continue
		}
		sites = append(sites, Site{Label: label, Code: code})
	}
	if len(sites) == 0 {
		logger.Warn("site config has no usable sources, using defaults", "path", path)
		return &Catalog{sites: defaultSites()}
	}

	sort.Slice(sites, func(i, j int) bool { return sites[i].Label < sites[j].Label })
	logger.Info("site catalog loaded", "path", path, "sites", len(sites))
	return &Catalog{sites: sites}
}

// Sites returns the catalog in label order. The returned slice is a copy.
func (c *Catalog) Sites() []Site {
	out := make([]Site, len(c.sites))
	copy(out, c.sites)
	return out
}

// Lookup finds a site by its USGS code.
func (c *Catalog) Lookup(code string) (Site, bool) {
	for _, s := range c.sites {
		if s.Code == code {
			return s, true
		}
	}
	return Site{}, false
}

const defaultSiteServiceURL = "https://waterservices.usgs.gov/nwis/site/"

// DiscoverOptions filters live site discovery. Zero values take the
// defaults: Colorado stream gauges reporting discharge or stage, active only.
type DiscoverOptions struct {
	States     []string
	Parameters []domain.Parameter
	// SiteStatus is "active" or "all".
	SiteStatus string
}

// Discoverer queries the USGS site service for stream gauges.
type Discoverer struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewDiscoverer creates a site-service client with a bounded timeout.
func NewDiscoverer(timeout time.Duration, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultSiteServiceURL,
		logger:     logger,
	}
}

// Discover queries the site service and returns the matching gauges in
// label order. Labels follow "station name, STATE (code)".
func (d *Discoverer) Discover(ctx context.Context, opts DiscoverOptions) ([]Site, error) {
	states := opts.States
	if len(states) == 0 {
		states = []string{"CO"}
	}
	normStates := make([]string, 0, len(states))
	seen := map[string]bool{}
	for _, s := range states {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		normStates = append(normStates, s)
	}
	sort.Strings(normStates)

	params := opts.Parameters
	if len(params) == 0 {
		params = []domain.Parameter{domain.ParamDischarge, domain.ParamGageHeight}
	}
	codes := make([]string, len(params))
	for i, p := range params {
		codes[i] = string(p)
	}

	status := opts.SiteStatus
	if status == "" {
		status = "active"
	}

	query := url.Values{
		"format":      {"rdb"},
		"siteType":    {"ST"},
		"parameterCd": {strings.Join(codes, ",")},
		"siteStatus":  {status},
		"stateCd":     {strings.Join(normStates, ",")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrRemoteUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}

	sites := sitesFromRDB(parseRDB(string(body)))
	d.logger.Debug("site discovery complete", "states", normStates, "sites", len(sites))
	return sites, nil
}

// parseRDB parses the USGS RDB (tab-delimited) format. Comment lines start
// with '#'; the first data line is the header and the second a column-width
// row, which is skipped.
func parseRDB(text string) []map[string]string {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimRight(ln, "\r")
		if ln == "" || strings.HasPrefix(ln, "#") {
			continue
		}
		lines = append(lines, ln)
	}
	if len(lines) < 2 {
		return nil
	}

	header := strings.Split(lines[0], "\t")
	var rows []map[string]string
	for _, ln := range lines[2:] {
		parts := strings.Split(ln, "\t")
		if len(parts) != len(header) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			row[strings.TrimSpace(h)] = parts[i]
		}
		rows = append(rows, row)
	}
	return rows
}

func sitesFromRDB(rows []map[string]string) []Site {
	var sites []Site
	for _, row := range rows {
		code := strings.TrimSpace(row["site_no"])
		name := strings.TrimSpace(row["station_nm"])
		if code == "" || name == "" {
			continue
		}
		label := fmt.Sprintf("%s (%s)", name, code)
		if state := strings.TrimSpace(row["state_cd"]); state != "" {
			label = fmt.Sprintf("%s, %s (%s)", name, state, code)
		}
		sites = append(sites, Site{Label: label, Code: code})
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].Label < sites[j].Label })
	return sites
}
