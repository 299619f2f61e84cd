package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestServerControl_SignalsOnce(t *testing.T) {
	control := newServerControl()

	ctx := &fasthttp.RequestCtx{}
	control.restartHandler(ctx)
	assert.Equal(t, fasthttp.StatusAccepted, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "restart scheduled")

	// A second request before the loop consumes the first is rejected
	ctx = &fasthttp.RequestCtx{}
	control.restartHandler(ctx)
	assert.Equal(t, fasthttp.StatusConflict, ctx.Response.StatusCode())

	<-control.restart
	ctx = &fasthttp.RequestCtx{}
	control.restartHandler(ctx)
	assert.Equal(t, fasthttp.StatusAccepted, ctx.Response.StatusCode())
}

func TestServerControl_Stop(t *testing.T) {
	control := newServerControl()

	ctx := &fasthttp.RequestCtx{}
	control.stopHandler(ctx)
	assert.Equal(t, fasthttp.StatusAccepted, ctx.Response.StatusCode())

	select {
	case <-control.stop:
	default:
		t.Fatal("stop was not signalled")
	}
	assert.Empty(t, control.restart)
}
