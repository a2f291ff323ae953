package transport

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

const flashCookieName = "flash"

type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

const (
	FlashSuccess = "success"
	FlashWarning = "warning"
	FlashError   = "error"
)

// encodeFlashes packs messages into a cookie-safe string. Base64 keeps the
// JSON clear of characters that cookie values cannot carry.
func encodeFlashes(flashes []Flash) string {
	b, err := json.Marshal(flashes)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(b)
}

func decodeFlashes(value string) []Flash {
	b, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	flashes := make([]Flash, 0)
	if err := json.Unmarshal(b, &flashes); err != nil {
		return nil
	}
	return flashes
}

// addFlash queues a message for the next rendered page. Messages already
// queued on the request survive the append.
func addFlash(c echo.Context, level, message string) {
	flashes := pendingFlashes(c)
	flashes = append(flashes, Flash{Level: level, Message: message})
	c.SetCookie(&http.Cookie{
		Name:     flashCookieName,
		Value:    encodeFlashes(flashes),
		Path:     "/",
		HttpOnly: true,
	})
}

func pendingFlashes(c echo.Context) []Flash {
	cookie, err := c.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	return decodeFlashes(cookie.Value)
}

// popFlashes consumes the queued messages: returns them and clears the
// cookie so a reload does not replay them.
func popFlashes(c echo.Context) []Flash {
	flashes := pendingFlashes(c)
	c.SetCookie(&http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	return flashes
}
