package main

import (
	"github.com/valyala/fasthttp"

	"github.com/edgecomet/apilog/internal/common/httputil"
	"github.com/edgecomet/apilog/internal/common/requestid"
)

// serverControl turns the API control operations into signals for the main
// loop. Handlers only signal; the server cannot shut itself down from inside
// one of its own handlers.
type serverControl struct {
	restart chan struct{}
	stop    chan struct{}
}

func newServerControl() *serverControl {
	return &serverControl{
		restart: make(chan struct{}, 1),
		stop:    make(chan struct{}, 1),
	}
}

func (c *serverControl) restartHandler(ctx *fasthttp.RequestCtx) {
	c.signal(ctx, c.restart, "restart scheduled")
}

func (c *serverControl) stopHandler(ctx *fasthttp.RequestCtx) {
	c.signal(ctx, c.stop, "stop scheduled")
}

func (c *serverControl) signal(ctx *fasthttp.RequestCtx, ch chan struct{}, message string) {
	resp := httputil.APIResponse{
		Success:   true,
		Message:   message,
		RequestID: string(ctx.Response.Header.Peek(requestid.HeaderName)),
	}

	select {
	case ch <- struct{}{}:
		httputil.JSONResponse(ctx, resp, fasthttp.StatusAccepted)
	default:
		resp.Success = false
		resp.Message = "operation already pending"
		httputil.JSONResponse(ctx, resp, fasthttp.StatusConflict)
	}
}
