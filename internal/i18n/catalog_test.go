package i18n

import (
	"strings"
	"testing"
)

func TestGetCatalogFallsBack(t *testing.T) {
	for _, locale := range []string{"", "xx-nonsense", "zz"} {
		if got := GetCatalog(locale).Locale(); got != DefaultLocale {
			t.Errorf("locale %q: got %q, want %q", locale, got, DefaultLocale)
		}
	}
}

func TestGetCatalogAcceptLanguage(t *testing.T) {
	if got := GetCatalog("en-US,en;q=0.9,de;q=0.8").Locale(); got != "en-US" {
		t.Errorf("got %q, want en-US", got)
	}
	if got := GetCatalog("en-GB").Locale(); got != "en-US" {
		t.Errorf("en-GB should match the en-US catalog, got %q", got)
	}
}

func TestFormatSubstitutesArguments(t *testing.T) {
	c := GetCatalog(DefaultLocale)

	msg := c.Format(MsgBanned, map[string]string{"Reason": "spam"})
	if !strings.Contains(msg, "spam") {
		t.Errorf("formatted message should carry the reason, got %q", msg)
	}
}

func TestFormatUnknownIDFallsBackToID(t *testing.T) {
	c := GetCatalog(DefaultLocale)

	if got := c.Format("no_such_message", nil); got != "no_such_message" {
		t.Errorf("got %q", got)
	}
}

func TestFormatPlainMessage(t *testing.T) {
	c := GetCatalog(DefaultLocale)

	got := c.Format(MsgAuthenticationFailed, nil)
	if got == "" || got == MsgAuthenticationFailed {
		t.Errorf("expected a translated message, got %q", got)
	}
}
