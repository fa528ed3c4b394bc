// ABOUTME: Picks the client's preferred language for the greeting prompt.
// ABOUTME: Parses Accept-Language with golang.org/x/text/language.

package gateway

import (
	"strings"

	"golang.org/x/text/language"
)

// LocalePlaceholder in a greeting prompt is replaced with the client's language.
const LocalePlaceholder = "{locale}"

const defaultLocale = "en"

// preferredLocale returns the base language of the highest-weighted tag in
// an Accept-Language header, or "en".
func preferredLocale(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return defaultLocale
	}
	base, conf := tags[0].Base()
	if conf == language.No {
		return defaultLocale
	}
	return base.String()
}

// greetingPrompt localizes prompt for a client. An empty prompt stays empty.
func greetingPrompt(prompt, acceptLanguage string) string {
	if prompt == "" || !strings.Contains(prompt, LocalePlaceholder) {
		return prompt
	}
	return strings.ReplaceAll(prompt, LocalePlaceholder, preferredLocale(acceptLanguage))
}
