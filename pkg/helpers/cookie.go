package helpers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	RefreshCookieName = "refresh_token"
	RefreshCookiePath = "/auth"
)

// CookieManager writes the refresh cookie. The access token never travels
// in a cookie.
type CookieManager struct {
	Domain string
	Secure bool
}

func NewCookie(domain string, secure bool) *CookieManager {
	return &CookieManager{Domain: domain, Secure: secure}
}

func (m *CookieManager) SetRefresh(c *gin.Context, refresh string, exp time.Time) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RefreshCookieName, refresh, maxAgeFrom(exp), RefreshCookiePath, m.Domain, m.Secure, true)
}

func (m *CookieManager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RefreshCookieName, "", -1, RefreshCookiePath, m.Domain, m.Secure, true)
}

// Refresh returns the refresh cookie value, or "" when absent.
func (m *CookieManager) Refresh(c *gin.Context) string {
	v, err := c.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return v
}

func maxAgeFrom(exp time.Time) int {
	sec := int(time.Until(exp).Seconds())
	if sec < 0 {
		return 0
	}
	return sec
}
