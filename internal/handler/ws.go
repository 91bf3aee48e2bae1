package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"deeplink/internal/model"
	"deeplink/internal/service"
	"deeplink/internal/utils"
	"deeplink/internal/view"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Target  string      `json:"target"`
	Service string      `json:"service,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	HTML    string      `json:"html,omitempty"`
}

// wsConn serializes writes; progress callbacks arrive from several
// goroutines.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (w *wsConn) send(msg WSMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		utils.Log.Warn("websocket marshal failed", utils.Field("error", err.Error()))
		return
	}
	w.mu.Lock()
	_ = w.ws.WriteMessage(websocket.TextMessage, b)
	w.mu.Unlock()
}

// HandleWS streams validation progress. Each connection owns one session:
// a new request supersedes the one still running on it.
func (h *Handler) HandleWS(c echo.Context) error {
	ws, err := h.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = ws.Close()
	}()

	conn := &wsConn{ws: ws}
	session := service.NewSession()
	defer session.Cancel()

	ctx := c.Request().Context()
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var form view.ValidatorForm
		if err := json.Unmarshal(msg, &form); err != nil {
			continue
		}
		req, err := service.NewValidationRequest(form.Domain, form.Prefix, form.IOSBundle, form.AndroidPackage)
		if err != nil {
			conn.send(WSMessage{Type: "error", Target: form.Domain, Data: err.Error()})
			continue
		}

		go h.streamValidation(ctx, c, conn, session, req)
	}
	return nil
}

func (h *Handler) streamValidation(ctx context.Context, c echo.Context, conn *wsConn, session *service.Session, req model.ValidationRequest) {
	report, err := h.Validator.Run(ctx, session, req, func(p service.Progress) {
		if p.Stage == service.StageStart {
			conn.send(WSMessage{Type: "log", Target: req.Domain, Data: "Validating " + req.Domain})
			return
		}
		conn.send(WSMessage{Type: "progress", Target: req.Domain, Service: string(p.Stage), Data: stageData(p)})
	})
	if errors.Is(err, service.ErrSuperseded) {
		utils.Log.Debug("validation superseded", utils.Field("domain", req.Domain))
		return
	}
	if err != nil {
		conn.send(WSMessage{Type: "error", Target: req.Domain, Data: err.Error()})
		return
	}
	h.cacheReport(context.WithoutCancel(ctx), req, report)

	conn.send(WSMessage{Type: "report", Target: req.Domain, Data: report, HTML: renderReport(c, report)})
}

func stageData(p service.Progress) interface{} {
	switch p.Stage {
	case service.StageDNS:
		return p.State.DNS
	case service.StageIOS:
		return p.State.IOS
	case service.StageAndroid:
		return p.State.Android
	default:
		return p.State
	}
}

func renderReport(c echo.Context, report *model.Report) string {
	r := c.Echo().Renderer
	if r == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, "report", view.BuildReport(report), c); err != nil {
		utils.Log.Warn("report render failed", utils.Field("error", err.Error()))
		return ""
	}
	return buf.String()
}

// checkOrigin accepts same-host origins, the configured domain and its
// subdomains, and the forwarded host when a proxy is trusted.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.AppConfig.SkipOriginCheck {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	originHost := strings.ToLower(u.Hostname())

	if allowed := strings.ToLower(h.AppConfig.AllowedDomain); allowed != "" {
		if originHost == allowed || strings.HasSuffix(originHost, "."+allowed) {
			return true
		}
	}
	if h.AppConfig.TrustProxy || h.AppConfig.UseCloudflare {
		if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" && strings.EqualFold(hostOnly(fwd), originHost) {
			return true
		}
	}
	if strings.EqualFold(hostOnly(r.Host), originHost) {
		return true
	}

	utils.Log.Warn("websocket origin rejected", utils.Field("origin", origin), utils.Field("host", r.Host))
	return false
}

func hostOnly(hostport string) string {
	first := strings.TrimSpace(strings.Split(hostport, ",")[0])
	if host, _, err := net.SplitHostPort(first); err == nil {
		return host
	}
	return first
}
