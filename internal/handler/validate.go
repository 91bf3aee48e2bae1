package handler

import (
	"context"
	"net/http"

	"deeplink/internal/model"
	"deeplink/internal/service"
	"deeplink/internal/utils"
	"deeplink/internal/view"

	"github.com/labstack/echo/v4"
)

// ValidatorPage shows the validator form, prefilled from the query.
func (h *Handler) ValidatorPage(c echo.Context) error {
	var form view.ValidatorForm
	_ = c.Bind(&form)
	return h.render(c, "validator.html", "AASA & Assetlinks", map[string]interface{}{"form": form})
}

// ValidatorSubmit runs a validation without the websocket. An HTMX request
// gets the report fragment alone.
func (h *Handler) ValidatorSubmit(c echo.Context) error {
	var form view.ValidatorForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	data := map[string]interface{}{"form": form}

	req, err := service.NewValidationRequest(form.Domain, form.Prefix, form.IOSBundle, form.AndroidPackage)
	if err != nil {
		data["error"] = err.Error()
		return h.render(c, "validator.html", "AASA & Assetlinks", data)
	}
	report, err := h.validate(c.Request().Context(), req)
	if err != nil {
		data["error"] = err.Error()
		return h.render(c, "validator.html", "AASA & Assetlinks", data)
	}

	rv := view.BuildReport(report)
	if c.Request().Header.Get("HX-Request") == "true" {
		return c.Render(http.StatusOK, "report", rv)
	}
	data["report"] = rv
	return h.render(c, "validator.html", "AASA & Assetlinks", data)
}

// APIValidate returns the report as JSON.
func (h *Handler) APIValidate(c echo.Context) error {
	var form view.ValidatorForm
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	req, err := service.NewValidationRequest(form.Domain, form.Prefix, form.IOSBundle, form.AndroidPackage)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	report, err := h.validate(c.Request().Context(), req)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, report)
}

// validate serves a cached report when one is fresh enough.
func (h *Handler) validate(ctx context.Context, req model.ValidationRequest) (*model.Report, error) {
	key := service.CacheKey(req)
	if h.AppConfig.ReportCacheTTL > 0 {
		cached, err := h.Storage.GetReport(ctx, key)
		if err != nil {
			utils.Log.Debug("report cache read failed", utils.Field("error", err.Error()))
		} else if cached != nil {
			return cached, nil
		}
	}

	report, err := h.Validator.Validate(ctx, req)
	if err != nil {
		return nil, err
	}
	h.cacheReport(ctx, req, report)
	return report, nil
}

func (h *Handler) cacheReport(ctx context.Context, req model.ValidationRequest, report *model.Report) {
	if h.AppConfig.ReportCacheTTL <= 0 {
		return
	}
	if err := h.Storage.SetReport(ctx, service.CacheKey(req), report, h.AppConfig.ReportCacheTTL); err != nil {
		utils.Log.Warn("report cache write failed", utils.Field("domain", req.Domain), utils.Field("error", err.Error()))
	}
}
