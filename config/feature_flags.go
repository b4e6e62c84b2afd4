package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags holds runtime toggles. Defaults are set in code and may be
// overridden with FEATURE_<NAME>=true|false, where dots become underscores.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single toggle.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	// Report subscribers for single-assessment and enrollment events.
	FeatureReportsSingle = "reports.single"
	// Report subscribers for batch events.
	FeatureReportsBatch = "reports.batch"
	// Multipart xlsx uploads on batch routes.
	FeatureSpreadsheetUpload = "batch.spreadsheet_upload"
	// Redis read-through cache for report lookups.
	FeatureLookupCache = "cache.lookups"
)

// LoadFeatureFlags builds the defaults and applies environment overrides.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()
	ff.loadFromEnvironment()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	defaults := []Feature{
		{Name: FeatureReportsSingle, Description: "Audit reports for single mutations", Enabled: true},
		{Name: FeatureReportsBatch, Description: "Consolidated audit reports for batches", Enabled: true},
		{Name: FeatureSpreadsheetUpload, Description: "Accept xlsx uploads on batch routes", Enabled: true},
		{Name: FeatureLookupCache, Description: "Cache names used by report subscribers", Enabled: true},
	}
	for i := range defaults {
		f := defaults[i]
		ff.features[f.Name] = &f
	}
}

func (ff *FeatureFlags) loadFromEnvironment() {
	for name, f := range ff.features {
		raw, ok := os.LookupEnv(featureNameToEnvKey(name))
		if !ok {
			continue
		}
		if v, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			f.Enabled = v
		}
	}
}

func featureNameToEnvKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(name))
}

// IsEnabled reports whether a feature is on. Unknown features are off.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	if ff == nil {
		return false
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	f, ok := ff.features[name]
	return ok && f.Enabled
}

// Set toggles a known feature.
func (ff *FeatureFlags) Set(name string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	f, ok := ff.features[name]
	if !ok {
		return &FeatureFlagError{Feature: name}
	}
	f.Enabled = enabled
	return nil
}

// Names returns every known feature name, sorted.
func (ff *FeatureFlags) Names() []string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	names := make([]string, 0, len(ff.features))
	for n := range ff.features {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FeatureFlagError is returned for unknown features.
type FeatureFlagError struct {
	Feature string
}

func (e *FeatureFlagError) Error() string {
	return "unknown feature: " + e.Feature
}
