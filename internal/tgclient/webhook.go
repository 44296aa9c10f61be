package tgclient

import (
	"context"
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/rtrwslv/TicTacToeBot/internal/obslog"
)

// WebhookServer receives update deliveries over HTTP instead of polling.
type WebhookServer struct {
	path    string
	handler UpdateHandler
	srv     *fasthttp.Server
}

func NewWebhookServer(path string, handler UpdateHandler) *WebhookServer {
	if path == "" {
		path = "/"
	}
	ws := &WebhookServer{path: path, handler: handler}
	ws.srv = &fasthttp.Server{Handler: ws.handle}
	return ws
}

// Run serves until ListenAndServe returns.
func (ws *WebhookServer) Run(addr string) error {
	obslog.L().Info("webhook_listen", zap.String("addr", addr), zap.String("path", ws.path))
	return ws.srv.ListenAndServe(addr)
}

// Shutdown stops accepting new deliveries.
func (ws *WebhookServer) Shutdown(ctx context.Context) error {
	return ws.srv.ShutdownWithContext(ctx)
}

func (ws *WebhookServer) handle(ctx *fasthttp.RequestCtx) {
	if string(ctx.Method()) != fasthttp.MethodPost || string(ctx.Path()) != ws.path {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}

	var u Update
	if err := json.Unmarshal(ctx.PostBody(), &u); err != nil {
		obslog.L().Warn("webhook_bad_update", zap.Error(err))
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	go ws.handler(context.Background(), u)

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBodyString(`{"success":true}`)
}
