package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys are the valid top-level keys in the config file. They mirror the
// toml tags on Config.
var knownKeys = map[string]bool{
	"api_key": true, "acc_loc": true, "gtoken": true, "bullettoken": true,
	"session_token": true, "f_gen": true,
	"app_user_agent": true, "log_level": true, "session_store": true,
}

// knownKeysList is knownKeys in sorted order, so ties in edit distance
// always suggest the same key.
var knownKeysList = slices.Sorted(maps.Keys(knownKeys))

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key. The file is
// flat, so any table is unknown as a whole and reported once.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	seen := make(map[string]bool, len(undecoded))

	for _, key := range undecoded {
		top := key[0]
		if seen[top] {
			continue
		}

		seen[top] = true
		errs = append(errs, unknownKeyError(top))
	}

	return errors.Join(errs...)
}

// unknownKeyError creates a descriptive error for an unknown key, suggesting
// the closest known key when one is near enough.
func unknownKeyError(key string) error {
	if suggestion := closestMatch(key, knownKeysList); suggestion != "" {
		return fmt.Errorf("unknown config key %q (did you mean %q?)", key, suggestion)
	}

	return fmt.Errorf("unknown config key %q", key)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization; no full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
