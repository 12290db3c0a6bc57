package mockserver

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// unitRule generates a plausible value for channels whose declared unit
// string contains one of the substrings. Rules are tried in order,
// case-insensitively, first match wins — the order is part of the
// protocol contract with the real taxonomy and must not be re-sorted.
type unitRule struct {
	substrings []string
	generate   func() string
}

var unitRules = []unitRule{
	{[]string{"bool"}, func() string { return pick("ON", "OFF") }},
	{[]string{"count", "hz"}, func() string { return strconv.Itoa(rand.Intn(1001)) }},
	{[]string{"deg"}, func() string { return fmt.Sprintf("%.3f", uniform(-180, 180)) }},
	{[]string{"mm"}, func() string { return fmt.Sprintf("%.2f", uniform(-50, 50)) }},
	{[]string{"mev"}, func() string { return fmt.Sprintf("%.1f", uniform(400, 450)) }},
	{[]string{"v", "a"}, func() string { return fmt.Sprintf("%.2f", uniform(-15, 15)) }},
	{[]string{"mv"}, func() string { return fmt.Sprintf("%.3f", uniform(0, 10)) }},
	{[]string{"mhz"}, func() string { return fmt.Sprintf("%.2f", uniform(400, 600)) }},
	{[]string{"mbar"}, func() string { return fmt.Sprintf("%.2e", uniform(1e-10, 1e-6)) }},
	{[]string{"rpm"}, func() string { return strconv.Itoa(30000 + rand.Intn(30001)) }},
	{[]string{"c"}, func() string { return fmt.Sprintf("%.1f", uniform(20, 40)) }},
	{[]string{"l/min"}, func() string { return fmt.Sprintf("%.1f", uniform(0, 50)) }},
	{[]string{"ms"}, func() string { return strconv.Itoa(rand.Intn(10001)) }},
	{[]string{"%"}, func() string { return fmt.Sprintf("%.1f", uniform(0, 100)) }},
	{[]string{"enum"}, func() string { return pick("IDLE", "RUNNING", "ERROR", "MAINTENANCE") }},
	{[]string{"text"}, func() string { return pick("3", "UNKNOWN", "SUSPEND", "ON") }},
}

// generateFallbackValue produces a value from the unit string alone,
// used when no real-data snapshot value applies.
func generateFallbackValue(units string) string {
	u := strings.ToLower(units)
	for _, rule := range unitRules {
		for _, sub := range rule.substrings {
			if strings.Contains(u, sub) {
				return rule.generate()
			}
		}
	}
	return fmt.Sprintf("%.2f", uniform(-10, 10))
}

// generateRealisticValue prefers noise around a numeric snapshot value
// (±10%), falls back to repeating a non-numeric snapshot value, and
// finally to the unit heuristic.
func generateRealisticValue(snapshotVal, units string) string {
	if snapshotVal == "" || snapshotVal == "none" {
		return generateFallbackValue(units)
	}
	if strings.Contains(snapshotVal, ".") {
		if base, err := strconv.ParseFloat(snapshotVal, 64); err == nil {
			noisy := base + base*0.1*(rand.Float64()-0.5)*2
			return formatByUnits(noisy, units)
		}
	}
	return snapshotVal
}

// formatByUnits renders a numeric value with the precision its unit
// conventionally carries.
func formatByUnits(value float64, units string) string {
	u := strings.ToLower(units)
	switch {
	case strings.Contains(u, "deg"), strings.Contains(u, "mv"):
		return fmt.Sprintf("%.3f", value)
	case strings.Contains(u, "mm"), strings.Contains(u, "mhz"):
		return fmt.Sprintf("%.2f", value)
	case strings.Contains(u, "mev"), strings.Contains(u, "l/min"):
		return fmt.Sprintf("%.1f", value)
	case strings.Contains(u, "mbar"):
		return fmt.Sprintf("%.2e", value)
	case strings.Contains(u, "rpm"), strings.Contains(u, "ms"):
		return strconv.Itoa(int(value))
	case strings.Contains(u, "v"), strings.Contains(u, "a"):
		return fmt.Sprintf("%.3f", value)
	case strings.Contains(u, "c"):
		return fmt.Sprintf("%.1f", value)
	case strings.Contains(u, "%"):
		return fmt.Sprintf("%.1f", value)
	default:
		return fmt.Sprintf("%.2f", value)
	}
}

func uniform(lo, hi float64) float64 {
	return lo + rand.Float64()*(hi-lo)
}

func pick(options ...string) string {
	return options[rand.Intn(len(options))]
}
