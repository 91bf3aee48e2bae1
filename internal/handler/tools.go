package handler

import (
	"net/http"

	"deeplink/internal/codec"

	"github.com/labstack/echo/v4"
)

// Codec encodes or decodes the posted input.
func (h *Handler) Codec(c echo.Context) error {
	data := map[string]interface{}{"action": "encode"}
	if c.Request().Method != http.MethodPost {
		return h.render(c, "codec.html", "Encode / Decode", data)
	}

	input := c.FormValue("input")
	action := c.FormValue("action")
	data["input"] = input

	var out string
	var err error
	switch action {
	case "decode":
		data["action"] = action
		out, err = codec.Decode(input)
	case "encode", "":
		out, err = codec.Encode(input)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action")
	}
	if err != nil {
		data["error"] = err.Error()
	} else {
		data["output"] = out
	}
	return h.render(c, "codec.html", "Encode / Decode", data)
}

func (h *Handler) Pretty(c echo.Context) error {
	data := map[string]interface{}{}
	if c.Request().Method == http.MethodPost {
		input := c.FormValue("input")
		data["input"] = input
		if res, err := codec.PrettyPrint(input); err != nil {
			data["error"] = err.Error()
		} else {
			data["result"] = res
		}
	}
	return h.render(c, "pretty.html", "Pretty URL", data)
}
