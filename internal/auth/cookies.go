package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetSessionCookies stores the auth token (http-only) and the CSRF token the
// browser must echo back in the CSRF header.
func (s *Service) SetSessionCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(s.tokenTTL.Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.cookieName,
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.csrfCookieName,
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Service) ClearSessionCookies(c *gin.Context) {
	for _, name := range []string{s.cookieName, s.csrfCookieName} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == s.cookieName,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
