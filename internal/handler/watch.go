package handler

import (
	"net/http"
	"net/url"
	"strings"

	"deeplink/internal/utils"
	"deeplink/internal/view"

	"github.com/labstack/echo/v4"
)

func (h *Handler) Watch(c echo.Context) error {
	ctx := c.Request().Context()
	data := map[string]interface{}{}

	if c.Request().Method == http.MethodPost {
		action := c.FormValue("action")
		domain := strings.TrimSpace(c.FormValue("domain"))
		switch action {
		case "add":
			normalized, err := utils.NormalizeDomain(domain)
			if err != nil {
				data["error"] = err.Error()
				break
			}
			if err := h.Storage.AddWatchedDomain(ctx, normalized); err != nil {
				return err
			}
			return c.Redirect(http.StatusSeeOther, "/watch")
		case "remove":
			if err := h.Storage.RemoveWatchedDomain(ctx, domain); err != nil {
				return err
			}
			return c.Redirect(http.StatusSeeOther, "/watch")
		case "check":
			if err := h.Monitor.RunCheck(ctx, domain); err != nil {
				utils.Log.Warn("manual watch check failed", utils.Field("domain", domain), utils.Field("error", err.Error()))
				data["error"] = err.Error()
				break
			}
			return c.Redirect(http.StatusSeeOther, "/watch/history/"+url.PathEscape(domain))
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "unknown action")
		}
	}

	domains, err := h.Storage.GetWatchedDomains(ctx)
	if err != nil {
		return err
	}
	data["domains"] = domains
	return h.render(c, "watch.html", "Watch", data)
}

// WatchHistory shows the stored runs of a watched domain with the diff
// between neighbours. format=json returns the raw entries and diffs.
func (h *Handler) WatchHistory(c echo.Context) error {
	domain, err := url.PathUnescape(c.Param("domain"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid domain")
	}
	entries, diffs, err := h.Storage.GetReportHistoryWithDiffs(c.Request().Context(), domain)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if c.QueryParam("format") == "json" {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"entries": entries,
			"diffs":   diffs,
		})
	}
	return h.render(c, "watch_history.html", "History", map[string]interface{}{
		"domain": domain,
		"runs":   view.BuildHistory(entries, diffs),
	})
}
