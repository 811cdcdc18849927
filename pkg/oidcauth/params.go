package oidcauth

import (
	"net/url"
	"strings"
)

// HasAuthParams reports whether loc carries an authorization response: a
// state together with a code or an error, in the query or in the fragment.
func HasAuthParams(loc *url.URL) bool {
	if loc == nil {
		return false
	}
	if isAuthResponse(loc.Query()) {
		return true
	}
	frag, err := url.ParseQuery(strings.TrimPrefix(loc.Fragment, "#"))
	return err == nil && isAuthResponse(frag)
}

func isAuthResponse(q url.Values) bool {
	return (q.Get("code") != "" || q.Get("error") != "") && q.Get("state") != ""
}
