package handler

import (
	"net/http"
	"strconv"
	"strings"

	"deeplink/internal/link"
	"deeplink/internal/model"
	"deeplink/internal/qr"
	"deeplink/internal/utils"
	"deeplink/internal/view"

	"github.com/labstack/echo/v4"
)

const (
	minQRSize = 64
	maxQRSize = 2000
)

// Testing shows the link tester, prefilled and locked when the query
// carries shared links.
func (h *Handler) Testing(c echo.Context) error {
	l := link.NewList(link.ParseShareQuery(c.QueryParams())...)
	return h.renderTester(c, l, "")
}

// TestingAction applies one editor operation posted by the tester form.
// The op value is "name" or "name:index".
func (h *Handler) TestingAction(c echo.Context) error {
	l, err := restoreList(c)
	if err != nil {
		return err
	}
	name, idx := parseOp(c.FormValue("op"))

	var opErr error
	switch name {
	case "add":
		opErr = l.Add("", -1)
	case "remove":
		opErr = l.Remove(idx)
	case "up":
		opErr = l.Move(idx, idx-1)
	case "down":
		opErr = l.Move(idx, idx+1)
	case "undo":
		l.Undo()
	case "edit":
		l.Edit()
	case "save":
		return h.saveList(c, l)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown operation")
	}

	msg := ""
	if opErr != nil {
		msg = opErr.Error()
	}
	return h.renderTester(c, l, msg)
}

// TestingSave locks the list and redirects to its share URL.
func (h *Handler) TestingSave(c echo.Context) error {
	l, err := restoreList(c)
	if err != nil {
		return err
	}
	return h.saveList(c, l)
}

func (h *Handler) saveList(c echo.Context, l *link.List) error {
	if err := l.Save(); err != nil {
		return h.renderTester(c, l, err.Error())
	}
	share, err := link.ShareURL(baseURL(c)+"/testing", l.Values())
	if err != nil {
		return h.renderTester(c, l, err.Error())
	}
	ctx := c.Request().Context()
	client := clientID(c)
	for _, v := range l.Values() {
		if _, err := h.Storage.AddLinkHistory(ctx, client, v); err != nil {
			utils.Log.Warn("link history write failed", utils.Field("error", err.Error()))
			break
		}
	}
	return c.Redirect(http.StatusSeeOther, share)
}

func (h *Handler) renderTester(c echo.Context, l *link.List, msg string) error {
	tv := view.BuildTester(l)
	tv.Error = msg
	if !l.EditMode() {
		tv.ShareURL, _ = link.ShareURL(baseURL(c)+"/testing", l.Values())
	}
	tv.History = h.linkHistory(c)
	return h.render(c, "testing.html", "Link Tester", map[string]interface{}{"tester": tv})
}

func (h *Handler) linkHistory(c echo.Context) []model.HistoryEntry {
	items, err := h.Storage.GetLinkHistory(c.Request().Context(), clientID(c))
	if err != nil {
		utils.Log.Warn("link history read failed", utils.Field("error", err.Error()))
		return nil
	}
	return items
}

func restoreList(c echo.Context) (*link.List, error) {
	form, err := c.FormParams()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	editMode := form.Get("edit") != "0"

	var rows []link.Row
	for _, v := range form["link"] {
		v = strings.TrimSpace(v)
		rows = append(rows, link.Row{Value: v, Locked: !editMode && link.ValidateLink(v).OK})
	}
	var undo []link.Removed
	for _, u := range form["undo"] {
		if r, ok := view.DecodeRemoved(u); ok {
			undo = append(undo, r)
		}
	}
	return link.Restore(rows, editMode, undo), nil
}

func parseOp(op string) (string, int) {
	name, idx, ok := strings.Cut(op, ":")
	if !ok {
		return name, -1
	}
	i, err := strconv.Atoi(idx)
	if err != nil {
		return name, -1
	}
	return name, i
}

// === JSON API ===

type linkRequest struct {
	Value string `json:"value" form:"value" query:"value"`
}

type linkResponse struct {
	Value string `json:"value"`
	link.Validation
}

func (h *Handler) ValidateLink(c echo.Context) error {
	var req linkRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	v := strings.TrimSpace(req.Value)
	return c.JSON(http.StatusOK, linkResponse{Value: v, Validation: link.ValidateLink(v)})
}

type shareRequest struct {
	Links []string `json:"links" form:"link"`
}

// Share builds the share URL: the single "link" parameter for one link,
// link1..N otherwise.
func (h *Handler) Share(c echo.Context) error {
	var req shareRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	var values []string
	for _, v := range req.Links {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}

	base := baseURL(c) + "/testing"
	var share string
	var err error
	if len(values) == 1 {
		share, err = link.ShareLinkURL(base, values[0])
	} else {
		share, err = link.ShareURL(base, values)
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"url": share})
}

// QR renders a PNG preview, or the printable version as an attachment
// when download is set.
func (h *Handler) QR(c echo.Context) error {
	value := strings.TrimSpace(c.QueryParam("value"))
	if value == "" {
		return echo.NewHTTPError(http.StatusBadRequest, qr.ErrEmptyValue.Error())
	}

	var png []byte
	var err error
	switch {
	case c.QueryParam("download") != "":
		png, err = qr.Download(value)
		if err == nil {
			name := qr.Filename(c.QueryParam("title"), value)
			c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
		}
	case c.QueryParam("size") != "":
		size, convErr := strconv.Atoi(c.QueryParam("size"))
		if convErr != nil || size < minQRSize || size > maxQRSize {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid size")
		}
		png, err = qr.Render(value, size, qr.PreviewPadding)
	default:
		png, err = qr.Preview(value)
	}
	if err != nil {
		utils.Log.Warn("qr render failed", utils.Field("error", err.Error()))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// History reads, appends to or clears the visitor's link history.
func (h *Handler) History(c echo.Context) error {
	ctx := c.Request().Context()
	client := clientID(c)

	switch c.Request().Method {
	case http.MethodDelete:
		if err := h.Storage.ClearLinkHistory(ctx, client); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.NoContent(http.StatusNoContent)
	case http.MethodPost:
		var req linkRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
		}
		v := strings.TrimSpace(req.Value)
		if !link.ValidateLink(v).OK {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": link.ErrInvalidLink.Error()})
		}
		items, err := h.Storage.AddLinkHistory(ctx, client, v)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, items)
	}

	items, err := h.Storage.GetLinkHistory(ctx, client)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if items == nil {
		items = []model.HistoryEntry{}
	}
	return c.JSON(http.StatusOK, items)
}
