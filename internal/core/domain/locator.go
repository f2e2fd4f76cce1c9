package domain

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const MaxImageURLLength = 1000

var errLocatorShape = errors.New("image reference must be an https URL on the configured object store")

// Locator checks that image references point into the configured object store.
// A reference is accepted only when it matches https://<label>.<public domain>/<path>.
type Locator struct {
	publicDomain string
	pattern      *regexp.Regexp
	hostPattern  *regexp.Regexp
}

func NewLocator(publicDomain string) (*Locator, error) {
	d := strings.ToLower(strings.Trim(strings.TrimSpace(publicDomain), "."))
	if d == "" {
		return nil, fmt.Errorf("object store public domain is empty")
	}
	quoted := regexp.QuoteMeta(d)
	return &Locator{
		publicDomain: d,
		pattern:      regexp.MustCompile(`^https://[a-z0-9-]+\.` + quoted + `/.+$`),
		hostPattern:  regexp.MustCompile(`^[a-z0-9-]+\.` + quoted + `$`),
	}, nil
}

func (l *Locator) PublicDomain() string {
	return l.publicDomain
}

// Validate performs the shape check only; it never touches the network.
func (l *Locator) Validate(ref string) error {
	if ref == "" {
		return errors.New("image reference is required")
	}
	if len(ref) > MaxImageURLLength {
		return fmt.Errorf("image reference exceeds %d characters", MaxImageURLLength)
	}
	if !l.pattern.MatchString(ref) {
		return errLocatorShape
	}
	return nil
}

// AcceptsHost reports whether host is a valid public host under the store domain.
func (l *Locator) AcceptsHost(host string) bool {
	return l.hostPattern.MatchString(host)
}

// ObjectKey returns the object key a valid reference points at.
func (l *Locator) ObjectKey(ref string) (string, error) {
	if err := l.Validate(ref); err != nil {
		return "", err
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse image reference: %w", err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", errLocatorShape
	}
	return key, nil
}

// PublicURL builds the locator clients will later confirm for key.
func (l *Locator) PublicURL(host, key string) string {
	return "https://" + host + "/" + strings.TrimPrefix(key, "/")
}
