package handler

import "github.com/labstack/echo/v4"

// Register mounts every route on e.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/", h.Index)
	e.POST("/theme", h.SetTheme)

	// Link tester
	e.GET("/testing", h.Testing)
	e.POST("/testing", h.TestingAction)
	e.POST("/testing/save", h.TestingSave)
	e.GET("/qr", h.QR)
	e.POST("/api/link/validate", h.ValidateLink)
	e.POST("/api/share", h.Share)
	e.GET("/api/history", h.History)
	e.POST("/api/history", h.History)
	e.DELETE("/api/history", h.History)

	// Codec
	e.GET("/codec", h.Codec)
	e.POST("/codec", h.Codec)
	e.GET("/pretty", h.Pretty)
	e.POST("/pretty", h.Pretty)

	// Validator
	e.GET("/validator", h.ValidatorPage)
	e.POST("/validator", h.ValidatorSubmit) // HTMX
	e.GET("/api/validate", h.APIValidate)
	e.GET("/ws", h.HandleWS)

	// Watch list
	e.GET("/watch", h.Watch)
	e.POST("/watch", h.Watch)
	e.GET("/watch/history/:domain", h.WatchHistory)

	if h.Validator != nil && h.Validator.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Validator.Metrics.Handler()))
	}
}
