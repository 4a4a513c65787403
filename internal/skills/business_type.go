package skills

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// BusinessType enumerates the verticals a client can be classified as.
type BusinessType string

const (
	BusinessEcommerce    BusinessType = "ecommerce"
	BusinessLeadGen      BusinessType = "lead_gen"
	BusinessSaaS         BusinessType = "saas"
	BusinessLocalService BusinessType = "local_service"
	BusinessPublisher    BusinessType = "publisher"
)

// ErrUnknownBusinessType is a configuration error: the type is not declared.
var ErrUnknownBusinessType = errors.New("unknown business type")

// profile is the minimum every declared type carries even without a
// dedicated bundle: the deny-list that keeps other verticals' concepts out.
type profile struct {
	description string
	exclusions  []string
}

var declared = map[BusinessType]profile{
	BusinessEcommerce: {
		description: "Online retail selling physical or digital products",
		exclusions: []string{
			`(?i)lead form`,
			`(?i)cost per lead|\bCPL\b`,
			`(?i)free trial`,
		},
	},
	BusinessLeadGen: {
		description: "Businesses that convert visitors into enquiries or booked calls",
		exclusions: []string{
			`(?i)schema:?\s*Product\b`,
			`(?i)product (schema|markup|feed|listing)`,
			`(?i)add[- ]to[- ]cart`,
			`(?i)shopping campaign`,
			`(?i)merchant center`,
			`(?i)\bROAS\b`,
		},
	},
	BusinessSaaS: {
		description: "Subscription software",
		exclusions: []string{
			`(?i)schema:?\s*Product\b`,
			`(?i)add[- ]to[- ]cart`,
			`(?i)shopping campaign`,
			`(?i)merchant center`,
			`(?i)store (visits|locator)`,
		},
	},
	BusinessLocalService: {
		description: "Service businesses operating in a bounded geography",
		exclusions: []string{
			`(?i)add[- ]to[- ]cart`,
			`(?i)shopping campaign`,
			`(?i)merchant center`,
			`(?i)free trial`,
			`(?i)international (expansion|targeting)`,
		},
	},
	BusinessPublisher: {
		description: "Ad-supported or subscription content sites",
		exclusions: []string{
			`(?i)add[- ]to[- ]cart`,
			`(?i)shopping campaign`,
			`(?i)lead form`,
			`(?i)schema:?\s*Product\b`,
		},
	},
}

// ParseBusinessType validates a raw string against the declared set.
func ParseBusinessType(s string) (BusinessType, error) {
	bt := BusinessType(strings.ToLower(strings.TrimSpace(s)))
	bt = BusinessType(strings.ReplaceAll(string(bt), "-", "_"))
	if _, ok := declared[bt]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownBusinessType, s)
	}
	return bt, nil
}

// Declared reports whether bt is a known business type.
func (bt BusinessType) Declared() bool {
	_, ok := declared[bt]
	return ok
}

// DeclaredTypes lists every declared business type in a stable order.
func DeclaredTypes() []BusinessType {
	out := make([]BusinessType, 0, len(declared))
	for bt := range declared {
		out = append(out, bt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
