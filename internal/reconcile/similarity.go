package reconcile

import (
	"net"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/net/publicsuffix"

	"github.com/persistorai/credsync/internal/models"
)

// NameSimilarity returns 1 minus the normalized edit distance between two
// canonical names. Two empty names are identical; one empty name scores 0.
func NameSimilarity(a, b string) float64 {
	a, b = models.Canonical(a), models.Canonical(b)
	if a == b {
		return 1
	}

	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}

	longest := max(la, lb)
	dist := levenshtein.ComputeDistance(a, b)

	return 1 - float64(dist)/float64(longest)
}

// RegistrableDomain extracts the eTLD+1 of a URL. Bare hosts without a scheme
// are accepted. IP addresses and single-label hosts are returned as-is. The
// boolean is false when no host can be extracted.
func RegistrableDomain(raw string) (string, bool) {
	raw = models.Canonical(raw)
	if raw == "" {
		return "", false
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	host := strings.TrimSuffix(u.Hostname(), ".")
	if host == "" {
		return "", false
	}

	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host, true
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, true
	}

	return domain, true
}

// DomainSimilarity scores two URLs 1 when they share a registrable domain and
// 0 otherwise. The boolean is false when either side has no usable host.
func DomainSimilarity(a, b string) (float64, bool) {
	da, okA := RegistrableDomain(a)
	db, okB := RegistrableDomain(b)
	if !okA || !okB {
		return 0, false
	}

	if da == db {
		return 1, true
	}

	return 0, true
}

// Score combines name and domain similarity using the configured weights.
// When either URL lacks a host the score is name similarity alone.
func (c ScoringConfig) Score(in models.IncomingRecord, saved models.SavedRecord) float64 {
	name := NameSimilarity(in.Name, saved.Name)

	dom, ok := DomainSimilarity(in.URL, saved.URL)
	if !ok {
		return name
	}

	return (c.NameWeight*name + c.DomainWeight*dom) / (c.NameWeight + c.DomainWeight)
}

// extractKey applies an exact-mode pattern to a canonical name. The key is
// the first capture group when the pattern has one, else the whole match.
func (m ExactMode) extractKey(name string) (string, bool) {
	sub := m.Pattern.FindStringSubmatch(models.Canonical(name))
	if sub == nil {
		return "", false
	}

	if len(sub) > 1 {
		return sub[1], true
	}

	return sub[0], true
}
