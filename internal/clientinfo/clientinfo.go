// Package clientinfo extracts request metadata recorded alongside a scan.
package clientinfo

import (
	"net/http"
	"strings"

	"github.com/dmitrymomot/saaskit/pkg/clientip"
	"golang.org/x/text/language"
)

// IP returns the client address of a request, preferring proxy headers.
// Priority: CF-Connecting-IP, DO-Connecting-IP, X-Forwarded-For (first
// valid entry), X-Real-IP, then RemoteAddr. An empty string means no usable
// address was found.
func IP(r *http.Request) string {
	return clientip.GetIP(r)
}

// Language returns the base language of the highest weighted tag in an
// Accept-Language header, or an empty string.
func Language(acceptLanguage string) string {
	if strings.TrimSpace(acceptLanguage) == "" {
		return ""
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return ""
	}

	base, confidence := tags[0].Base()
	if confidence == language.No {
		return ""
	}
	return base.String()
}
