package useragent

import (
	"strings"

	uaparser "github.com/dmitrymomot/saaskit/pkg/useragent"
)

type browserPattern struct {
	name    string
	keyword string
}

// In-app and iOS browsers that the parser reports as their host engine.
// Checked first, in order.
var browserOverrides = []browserPattern{
	{name: BrowserFacebook, keyword: "fban"},
	{name: BrowserFacebook, keyword: "fbav"},
	{name: BrowserInstagram, keyword: "instagram"},
	{name: BrowserEdge, keyword: "edga/"},
	{name: BrowserEdge, keyword: "edgios/"},
	{name: BrowserFirefox, keyword: "fxios"},
	{name: BrowserChrome, keyword: "crios"},
}

var browserNames = map[string]string{
	uaparser.BrowserSamsung: BrowserSamsung,
	uaparser.BrowserUC:      BrowserUC,
	uaparser.BrowserUnknown: Unknown,
}

func browser(parsed uaparser.UserAgent, lowerUA string) string {
	for _, pattern := range browserOverrides {
		if strings.Contains(lowerUA, pattern.keyword) {
			return pattern.name
		}
	}

	name := parsed.BrowserName()
	if mapped, ok := browserNames[name]; ok {
		return mapped
	}
	return orUnknown(name)
}
