package prospect

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"
)

const (
	// LockedEmailSentinel is the provider's placeholder for an address that
	// exists but was not disclosed.
	LockedEmailSentinel = "email_not_unlocked@domain.com"

	// EmailUnavailable marks a prospect with no usable address.
	EmailUnavailable = "N/A"
)

// MalformedRecordError names the raw record that normalization could not
// interpret. The whole batch is rejected rather than silently dropping rows.
type MalformedRecordError struct {
	Index  int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at index %d: %s", e.Index, e.Reason)
}

// Normalizer converts raw search records into canonical prospects.
//
// CoinFlip decides the fallback for locked emails: true picks the
// pattern-derived guess, false picks EmailUnavailable. Leaving it nil uses an
// unseeded coin, matching production behavior; tests inject a fixed outcome.
type Normalizer struct {
	CoinFlip func() bool
}

// Normalize maps records 1:1, preserving input order. Every output starts
// with an empty (non-nil) message list.
func (n Normalizer) Normalize(records []RawRecord) ([]Prospect, error) {
	out := make([]Prospect, 0, len(records))
	for i, rec := range records {
		if strings.TrimSpace(rec.LinkedInURL) == "" {
			return nil, &MalformedRecordError{Index: i, Reason: "missing linkedin_url"}
		}

		out = append(out, Prospect{
			FirstName:        rec.FirstName,
			LastName:         rec.LastName,
			Title:            rec.Title,
			Seniority:        rec.Seniority,
			OrganizationName: rec.OrganizationName,
			LinkedInURL:      rec.LinkedInURL,
			Email:            n.resolveEmail(rec),
			Description:      rec.Description,
			EmailMessages:    []EmailMessage{},
		})
	}
	return out, nil
}

func (n Normalizer) resolveEmail(rec RawRecord) string {
	switch rec.Email {
	case "":
		return EmailUnavailable
	case LockedEmailSentinel:
	default:
		return rec.Email
	}

	// Locked address: half the time guess "{first}@{org}.com", the other half
	// admit the address is unavailable.
	first := strings.ToLower(strings.TrimSpace(rec.FirstName))
	org := strings.ToLower(stripSpace(rec.OrganizationName))
	if first == "" || org == "" {
		// Nothing to derive a guess from; the coin never decides this case.
		return EmailUnavailable
	}
	if !n.flip() {
		return EmailUnavailable
	}
	return first + "@" + org + ".com"
}

func (n Normalizer) flip() bool {
	if n.CoinFlip != nil {
		return n.CoinFlip()
	}
	return rand.IntN(2) == 0
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
