package view

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

// FlashCookie carries messages across a redirect
const FlashCookie = "_flash"

const flashKey = "flash"

// Flash holds the one-shot messages shown above the page content
type Flash struct {
	Notice string `json:"notice,omitempty"`
	Alert  string `json:"alert,omitempty"`
}

func (f Flash) empty() bool {
	return f.Notice == "" && f.Alert == ""
}

// SetFlash stores f for the next request, normally followed by a redirect
func SetFlash(c echo.Context, f Flash) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.SetCookie(&http.Cookie{
		Name:     FlashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// FlashNow shows f on the page rendered by this request
func FlashNow(c echo.Context, f Flash) {
	c.Set(flashKey, f)
}

// ConsumeFlash returns the pending messages and clears the cookie
func ConsumeFlash(c echo.Context) Flash {
	if f, ok := c.Get(flashKey).(Flash); ok {
		return f
	}

	var f Flash
	cookie, err := c.Cookie(FlashCookie)
	if err == nil && cookie.Value != "" {
		if data, err := base64.RawURLEncoding.DecodeString(cookie.Value); err == nil {
			_ = json.Unmarshal(data, &f)
		}
		c.SetCookie(&http.Cookie{
			Name:     FlashCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}

	c.Set(flashKey, f)
	return f
}
