// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug generates values for uid attributes.
package slug

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

var (
	// separators matches every run of characters a uid cannot hold,
	// hyphens included, so runs collapse into a single hyphen.
	separators = regexp.MustCompile(`[^a-z0-9_.~]+`)
	// uidPattern is the alphabet of a uid value.
	uidPattern = regexp.MustCompile(`^[A-Za-z0-9\-_.~]*$`)
)

// Generate creates a uid value from the given string.
// Example: "Hello, World! 2026" → "hello-world-2026"
func Generate(s string) string {
	result := strings.ToLower(strings.TrimSpace(s))
	result = separators.ReplaceAllString(result, "-")
	return strings.Trim(result, "-")
}

// Valid reports whether s only uses characters allowed in a uid.
func Valid(s string) bool {
	return uidPattern.MatchString(s)
}

// Available returns base when taken reports it free, otherwise base with
// the lowest free numeric suffix ("base-1", "base-2", ...).
func Available(ctx context.Context, base string, taken func(context.Context, string) (bool, error)) (string, error) {
	candidate := base
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
}
