// Command meta lists available USGS gauge sites, either discovered live from
// the USGS site service or taken from the configured catalog.
//
// Usage:
//
//	go run ./cmd/meta                                # discover CO stream gauges
//	go run ./cmd/meta -state CO -state UT -format json
//	go run ./cmd/meta -mode config -config config.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/river-gauge-etl/internal/catalog"
	"github.com/couchcryptid/river-gauge-etl/internal/domain"
)

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var states stringList
	mode := flag.String("mode", "usgs", "site source: usgs (live discovery) or config")
	format := flag.String("format", "table", "output format: table or json")
	configPath := flag.String("config", "config.json", "site catalog override file (config mode)")
	parameters := flag.String("parameter", "00060,00065", "comma-separated USGS parameter codes")
	siteStatus := flag.String("site-status", "active", "filter by site status: active or all")
	timeout := flag.Duration("timeout", 60*time.Second, "site service request timeout")
	flag.Var(&states, "state", "state code to include, repeatable (default CO)")
	flag.Parse()

	if code := run(*mode, *format, *configPath, *parameters, *siteStatus, states, *timeout); code != 0 {
		os.Exit(code)
	}
}

func run(mode, format, configPath, parameters, siteStatus string, states []string, timeout time.Duration) int {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var sites []catalog.Site
	switch mode {
	case "config":
		sites = catalog.Load(configPath, logger).Sites()
	case "usgs":
		params, err := parseParameters(parameters)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		d := catalog.NewDiscoverer(timeout, logger)
		sites, err = d.Discover(ctx, catalog.DiscoverOptions{
			States:     states,
			Parameters: params,
			SiteStatus: siteStatus,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q (want usgs or config)\n", mode)
		return 1
	}

	switch format {
	case "json":
		printJSON(sites)
	case "table":
		printTable(sites)
	default:
		fmt.Fprintf(os.Stderr, "unknown format %q (want table or json)\n", format)
		return 1
	}
	return 0
}

func parseParameters(s string) ([]domain.Parameter, error) {
	var params []domain.Parameter
	for _, part := range strings.Split(s, ",") {
		p, err := domain.ParseParameter(part)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func printJSON(sites []catalog.Site) {
	sources := make(map[string]string, len(sites))
	for _, s := range sites {
		sources[s.Label] = s.Code
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(map[string]any{"usgs_sources": sources}) //nolint:errcheck // stdout
}

func printTable(sites []catalog.Site) {
	if len(sites) == 0 {
		fmt.Println("No sources found.")
		return
	}
	labelWidth, codeWidth := len("Label"), len("USGS Site Code")
	for _, s := range sites {
		labelWidth = max(labelWidth, len(s.Label))
		codeWidth = max(codeWidth, len(s.Code))
	}
	fmt.Printf("%-*s  %-*s\n", labelWidth, "Label", codeWidth, "USGS Site Code")
	fmt.Printf("%s  %s\n", strings.Repeat("-", labelWidth), strings.Repeat("-", codeWidth))
	for _, s := range sites {
		fmt.Printf("%-*s  %-*s\n", labelWidth, s.Label, codeWidth, s.Code)
	}
}
