package httputil

import "net/http"

// AccessTokenCookie is the cookie the web client stores its bearer token in.
const AccessTokenCookie = "access_token"

// GetAccessTokenFromCookie returns the access token cookie, if present.
func GetAccessTokenFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(AccessTokenCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
