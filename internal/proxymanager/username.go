package proxymanager

import "fmt"

// BuildUsername renders the 2Captcha-style proxy username format (spec
// §6): `{apiKey}-country-{cc}[-state-{s}][-city-{c}][-session-{minutes}][-sessid-{id}]`.
// sessionMinutes 0 means rotating; >0 means sticky for N minutes, capped by
// maxSessionMinutes (0 = no cap).
func BuildUsername(apiKey, countryCode string, opts RequestOptions, maxSessionMinutes int) string {
	u := fmt.Sprintf("%s-country-%s", apiKey, countryCode)
	if opts.State != "" {
		u += "-state-" + opts.State
	}
	if opts.City != "" {
		u += "-city-" + opts.City
	}
	if opts.SessionMinutes > 0 {
		minutes := opts.SessionMinutes
		if maxSessionMinutes > 0 && minutes > maxSessionMinutes {
			minutes = maxSessionMinutes
		}
		u += fmt.Sprintf("-session-%d", minutes)
	}
	if opts.SessionID != "" {
		u += "-sessid-" + opts.SessionID
	}
	return u
}
