package shortener

import (
	"fmt"
	"time"
)

// Accepted values for the expires_in option.
const (
	ExpiresIn1Hour   = "1h"
	ExpiresIn24Hours = "24h"
	ExpiresIn7Days   = "7d"
	ExpiresIn30Days  = "30d"
	ExpiresInNever   = "never"
)

var expiryDurations = map[string]time.Duration{
	ExpiresIn1Hour:   time.Hour,
	ExpiresIn24Hours: 24 * time.Hour,
	ExpiresIn7Days:   7 * 24 * time.Hour,
	ExpiresIn30Days:  30 * 24 * time.Hour,
}

// ExpiresAt converts an expires_in option into an absolute time relative to
// now. "never" and the empty string yield nil.
func ExpiresAt(option string, now time.Time) (*time.Time, error) {
	if option == "" || option == ExpiresInNever {
		return nil, nil
	}
	d, ok := expiryDurations[option]
	if !ok {
		return nil, fmt.Errorf("invalid expires_in %q (must be one of: 1h, 24h, 7d, 30d, never)", option)
	}
	at := now.Add(d)
	return &at, nil
}
