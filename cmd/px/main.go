// Command px inspects cache artifacts from the command line: row counts,
// column listings, head/tail slices, and simple value and time filters.
//
// Usage:
//
//	go run ./cmd/px data/09095500_00060_iv_7d/series.parquet --info --head 10
//	go run ./cmd/px data/09095500_00060_iv_7d --where "value > 1000"
//	go run ./cmd/px data/*_iv_7d --start 2025-08-10 --end 2025-08-12 --head 20
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/river-gauge-etl/internal/cache"
)

func main() {
	if code := run(os.Args[1:]); code != 0 {
		os.Exit(code)
	}
}

func run(args []string) int {
	fs := flag.NewFlagSet("px", flag.ExitOnError)
	var (
		info    = fs.Bool("info", false, "print row count and time span")
		columns = fs.Bool("columns", false, "print column names")
		head    = fs.Int("head", 0, "show first N rows")
		tail    = fs.Int("tail", 0, "show last N rows")
		selects = fs.String("select", "", "comma-separated columns to print (instant,value,qualifiers)")
		where   = fs.String("where", "", `value filter, e.g. "value > 1000"`)
		start   = fs.String("start", "", "keep rows at or after this time (RFC3339 or YYYY-MM-DD)")
		end     = fs.String("end", "", "keep rows before this time (RFC3339 or YYYY-MM-DD)")
	)
	// Flags may follow the positional paths.
	paths, flagArgs := splitArgs(args)
	fs.Parse(flagArgs) //nolint:errcheck // ExitOnError

	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: px <artifact path or cache entry dir>... [flags]")
		fs.PrintDefaults()
		return 1
	}

	filter, err := buildFilter(*where, *start, *end)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	cols, err := parseSelect(*selects)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	failed := false
	for _, path := range paths {
		if err := show(path, filter, cols, *info, *columns, *head, *tail); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		return 1
	}
	return 0
}

// splitArgs separates leading positional paths from the flags that follow.
func splitArgs(args []string) (paths, flags []string) {
	for i, a := range args {
		if strings.HasPrefix(a, "-") {
			return args[:i], args[i:]
		}
	}
	return args, nil
}

type rowFilter func(cache.Row) bool

// buildFilter combines the --where comparison and --start/--end bounds into
// one predicate.
func buildFilter(where, start, end string) (rowFilter, error) {
	var preds []rowFilter

	if where != "" {
		pred, err := parseWhere(where)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	if start != "" {
		t, err := parseTime(start)
		if err != nil {
			return nil, fmt.Errorf("invalid --start: %w", err)
		}
		preds = append(preds, func(r cache.Row) bool { return !r.Instant.Before(t) })
	}
	if end != "" {
		t, err := parseTime(end)
		if err != nil {
			return nil, fmt.Errorf("invalid --end: %w", err)
		}
		preds = append(preds, func(r cache.Row) bool { return r.Instant.Before(t) })
	}

	return func(r cache.Row) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}, nil
}

// parseWhere understands "value OP number" with OP one of > >= < <= == !=.
// Rows with a missing value never match.
func parseWhere(expr string) (rowFilter, error) {
	fields := strings.Fields(expr)
	if len(fields) != 3 || fields[0] != "value" {
		return nil, fmt.Errorf("unsupported filter %q (want: value OP number)", expr)
	}
	threshold, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid filter threshold %q", fields[2])
	}

	var cmp func(float64) bool
	switch fields[1] {
	case ">":
		cmp = func(v float64) bool { return v > threshold }
	case ">=":
		cmp = func(v float64) bool { return v >= threshold }
	case "<":
		cmp = func(v float64) bool { return v < threshold }
	case "<=":
		cmp = func(v float64) bool { return v <= threshold }
	case "==":
		cmp = func(v float64) bool { return v == threshold }
	case "!=":
		cmp = func(v float64) bool { return v != threshold }
	default:
		return nil, fmt.Errorf("unsupported operator %q", fields[1])
	}
	return func(r cache.Row) bool { return r.Value != nil && cmp(*r.Value) }, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// parseSelect validates the --select column list. Empty means all columns.
func parseSelect(s string) ([]string, error) {
	if s == "" {
		return []string{"instant", "value", "qualifiers"}, nil
	}
	var cols []string
	for _, c := range strings.Split(s, ",") {
		c = strings.TrimSpace(c)
		switch c {
		case "instant", "value", "qualifiers":
			cols = append(cols, c)
		default:
			return nil, fmt.Errorf("unknown column %q (have: instant, value, qualifiers)", c)
		}
	}
	return cols, nil
}

func show(path string, filter rowFilter, cols []string, info, columns bool, head, tail int) error {
	// Accept either the artifact file or the cache entry directory.
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		path = filepath.Join(path, "series.parquet")
	}

	all, err := cache.ReadRows(path)
	if err != nil {
		return err
	}

	rows := all[:0:0]
	for _, r := range all {
		if filter(r) {
			rows = append(rows, r)
		}
	}

	fmt.Printf("== %s\n", path)
	if info || (!columns && head == 0 && tail == 0) {
		printInfo(all, rows)
	}
	if columns {
		fmt.Println("columns: instant (timestamp, UTC), value (double, optional), qualifiers (list<string>)")
	}
	if head > 0 {
		printRows(rows[:min(head, len(rows))], cols)
	}
	if tail > 0 {
		printRows(rows[max(0, len(rows)-tail):], cols)
	}
	return nil
}

func printInfo(all, filtered []cache.Row) {
	fmt.Printf("rows: %d", len(all))
	if len(filtered) != len(all) {
		fmt.Printf(" (%d after filter)", len(filtered))
	}
	fmt.Println()
	if len(all) > 0 {
		fmt.Printf("span: %s .. %s\n",
			all[0].Instant.Format(time.RFC3339),
			all[len(all)-1].Instant.Format(time.RFC3339))
	}
}

func printRows(rows []cache.Row, cols []string) {
	for _, r := range rows {
		fields := make([]string, 0, len(cols))
		for _, c := range cols {
			switch c {
			case "instant":
				fields = append(fields, r.Instant.Format(time.RFC3339))
			case "value":
				if r.Value != nil {
					fields = append(fields, fmt.Sprintf("%12s", strconv.FormatFloat(*r.Value, 'f', -1, 64)))
				} else {
					fields = append(fields, fmt.Sprintf("%12s", "null"))
				}
			case "qualifiers":
				fields = append(fields, strings.Join(r.Qualifiers, ","))
			}
		}
		fmt.Println(strings.TrimRight(strings.Join(fields, "  "), " "))
	}
}
