// Package api exposes the users API operations and raises a request hook and
// a response hook around every call.
package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/apilog/internal/apilog/events"
	"github.com/edgecomet/apilog/internal/apilog/hooks"
	"github.com/edgecomet/apilog/internal/common/httputil"
	"github.com/edgecomet/apilog/internal/common/requestid"
)

// API routes users API calls to operation handlers and raises the
// operation's hooks before and after each call.
type API struct {
	requestHooks  [operationCount]*hooks.RequestHook
	responseHooks [operationCount]*hooks.ResponseHook
	routes        map[string]map[string]Operation // method -> path -> operation
	logger        *zap.Logger
	now           func() time.Time

	mu       sync.RWMutex
	handlers [operationCount]fasthttp.RequestHandler
}

// New creates the API with every operation answering 501 until a handler is set
func New(logger *zap.Logger) *API {
	a := &API{
		routes: make(map[string]map[string]Operation),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, op := range Operations() {
		a.requestHooks[op] = hooks.NewRequestHook(HookName(op, events.DirectionRequest))
		a.responseHooks[op] = hooks.NewResponseHook(HookName(op, events.DirectionResponse))
		a.handlers[op] = notImplemented(op)

		route := op.Route()
		if a.routes[route.Method] == nil {
			a.routes[route.Method] = make(map[string]Operation)
		}
		a.routes[route.Method][route.Path] = op
	}

	return a
}

// HookName returns the public hook name, e.g. "OnAddUserHTTPRequest"
func HookName(op Operation, direction events.Direction) string {
	suffix := "Request"
	if direction == events.DirectionResponse {
		suffix = "Response"
	}
	return "On" + op.String() + "HTTP" + suffix
}

// OnRequest returns the hook raised when a request for op arrives
func (a *API) OnRequest(op Operation) *hooks.RequestHook {
	if !op.valid() {
		return nil
	}
	return a.requestHooks[op]
}

// OnResponse returns the hook raised after the response for op is produced
func (a *API) OnResponse(op Operation) *hooks.ResponseHook {
	if !op.valid() {
		return nil
	}
	return a.responseHooks[op]
}

// SetHandler replaces the handler serving op
func (a *API) SetHandler(op Operation, handler fasthttp.RequestHandler) {
	if !op.valid() || handler == nil {
		return
	}

	a.mu.Lock()
	a.handlers[op] = handler
	a.mu.Unlock()

	a.logger.Debug("Registered API handler",
		zap.String("operation", op.String()),
		zap.String("method", op.Route().Method),
		zap.String("path", op.Route().Path))
}

// Lookup resolves an exact method and path to an operation
func (a *API) Lookup(method, path string) (Operation, bool) {
	op, ok := a.routes[method][path]
	return op, ok
}

// Handler returns the fasthttp request handler for the API server
func (a *API) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		method := string(ctx.Method())
		path := string(ctx.Path())

		if op, ok := a.Lookup(method, path); ok {
			a.Serve(ctx, op)
			return
		}

		// Check if path exists for any method (for 405 vs 404)
		for _, methodRoutes := range a.routes {
			if _, ok := methodRoutes[path]; ok {
				httputil.JSONError(ctx, "method not allowed", fasthttp.StatusMethodNotAllowed)
				return
			}
		}

		httputil.JSONError(ctx, "not found", fasthttp.StatusNotFound)
	}
}

// Serve runs op's handler between its request and response hooks.
// A panicking handler is answered with 500 and still raises the response hook.
func (a *API) Serve(ctx *fasthttp.RequestCtx, op Operation) {
	start := a.now()
	req := captureRequest(ctx)

	a.requestHooks[op].Raise(start, req)

	a.mu.RLock()
	handler := a.handlers[op]
	a.mu.RUnlock()

	a.invoke(ctx, op, req, handler)

	end := a.now()
	a.responseHooks[op].Raise(end, req, captureResponse(ctx), end.Sub(start))
}

func (a *API) invoke(ctx *fasthttp.RequestCtx, op Operation, req *events.Request, handler fasthttp.RequestHandler) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("API handler panicked",
				zap.String("operation", op.String()),
				zap.String("request_id", req.RequestID),
				zap.Any("panic", r))
			ctx.Response.Reset()
			ctx.Response.Header.Set(requestid.HeaderName, req.RequestID)
			httputil.JSONResponse(ctx, httputil.APIResponse{
				Success:   false,
				Message:   "internal error",
				RequestID: req.RequestID,
			}, fasthttp.StatusInternalServerError)
		}
	}()

	handler(ctx)
}

func captureRequest(ctx *fasthttp.RequestCtx) *events.Request {
	return &events.Request{
		RequestID:     requestid.FromRequest(ctx),
		Method:        string(ctx.Method()),
		Path:          string(ctx.Path()),
		Host:          string(ctx.Host()),
		RemoteAddr:    ctx.RemoteAddr().String(),
		UserAgent:     string(ctx.UserAgent()),
		ContentLength: len(ctx.PostBody()),
	}
}

func captureResponse(ctx *fasthttp.RequestCtx) *events.Response {
	resp := &events.Response{
		StatusCode:  ctx.Response.StatusCode(),
		ContentType: string(ctx.Response.Header.ContentType()),
	}
	// Reading Body() would drain a streamed response
	if ctx.Response.IsBodyStream() {
		resp.ContentLength = ctx.Response.Header.ContentLength()
	} else {
		resp.ContentLength = len(ctx.Response.Body())
	}
	return resp
}

func notImplemented(op Operation) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		httputil.JSONResponse(ctx, httputil.APIResponse{
			Success:   false,
			Message:   fmt.Sprintf("%s is not implemented", op),
			RequestID: string(ctx.Response.Header.Peek(requestid.HeaderName)),
		}, fasthttp.StatusNotImplemented)
	}
}
