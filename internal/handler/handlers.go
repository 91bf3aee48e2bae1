package handler

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"deeplink/internal/config"
	"deeplink/internal/service"
	"deeplink/internal/storage"
	"deeplink/internal/utils"
	"deeplink/internal/view"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	themeCookie  = "theme"
	clientCookie = "client_id"
	cookieMaxAge = 365 * 24 * 60 * 60
)

type Handler struct {
	Storage   *storage.Storage
	Validator *service.Validator
	Monitor   *service.MonitorService
	AppConfig *config.Config
	Upgrader  websocket.Upgrader
}

func NewHandler(store *storage.Storage, v *service.Validator, cfg *config.Config) *Handler {
	h := &Handler{
		Storage:   store,
		Validator: v,
		Monitor:   service.NewMonitorService(store, v),
		AppConfig: cfg,
	}
	h.Upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// === Rendering ===

func (h *Handler) render(c echo.Context, name, title string, data map[string]interface{}) error {
	return h.renderStatus(c, http.StatusOK, name, title, data)
}

func (h *Handler) renderStatus(c echo.Context, code int, name, title string, data map[string]interface{}) error {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["title"] = title
	data["theme"] = Theme(c)
	data["themes"] = view.Themes
	data["path"] = c.Request().URL.Path
	return c.Render(code, name, data)
}

// Theme reads the theme cookie, falling back to auto.
func Theme(c echo.Context) string {
	cookie, err := c.Cookie(themeCookie)
	if err != nil {
		return "auto"
	}
	return view.NormalizeTheme(cookie.Value)
}

// clientID returns the visitor's history key, issuing a new cookie on the
// first visit.
func clientID(c echo.Context) string {
	if cookie, err := c.Cookie(clientCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		buf = []byte(time.Now().Format(time.RFC3339Nano))
	}
	id := hex.EncodeToString(buf)
	c.SetCookie(&http.Cookie{
		Name:     clientCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func baseURL(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host
}

// === Routes ===

func (h *Handler) Index(c echo.Context) error {
	return h.render(c, "index.html", "Tools", nil)
}

// SetTheme stores the theme preference and goes back to the page it was
// posted from.
func (h *Handler) SetTheme(c echo.Context) error {
	theme := view.NormalizeTheme(c.FormValue("theme"))
	c.SetCookie(&http.Cookie{
		Name:     themeCookie,
		Value:    theme,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		SameSite: http.SameSiteLaxMode,
	})
	next := c.FormValue("next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	utils.Log.Debug("theme changed", utils.Field("theme", theme))
	return c.Redirect(http.StatusSeeOther, next)
}
