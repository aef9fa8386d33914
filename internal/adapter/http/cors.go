package httpadapter

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const (
	corsAllowMethods = "GET,POST,OPTIONS"
	corsAllowHeaders = "Content-Type,X-Request-ID"
	corsMaxAge       = "600"
)

// corsPolicy decides which browser origins may call the combat API. No origins, or "*", allows any.
type corsPolicy struct {
	anyOrigin bool
	origins   map[string]struct{}
}

func newCORSPolicy(origins []string) corsPolicy {
	p := corsPolicy{origins: map[string]struct{}{}}
	for _, o := range origins {
		switch o = normalizeOrigin(o); o {
		case "":
		case "*":
			p.anyOrigin = true
		default:
			p.origins[o] = struct{}{}
		}
	}
	if len(p.origins) == 0 {
		p.anyOrigin = true
	}
	return p
}

func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}

// allowedOrigin is the Access-Control-Allow-Origin value for origin, "" when it is not allowed.
func (p corsPolicy) allowedOrigin(origin string) string {
	if p.anyOrigin {
		return "*"
	}
	if _, ok := p.origins[normalizeOrigin(origin)]; ok {
		return origin
	}
	return ""
}

func (p corsPolicy) apply(ctx *app.RequestContext) {
	if !p.anyOrigin {
		ctx.Response.Header.Set("Vary", "Origin")
	}
	allowed := p.allowedOrigin(string(ctx.Request.Header.Peek("Origin")))
	if allowed == "" {
		return
	}
	ctx.Response.Header.Set("Access-Control-Allow-Origin", allowed)
	ctx.Response.Header.Set("Access-Control-Allow-Methods", corsAllowMethods)
	ctx.Response.Header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	ctx.Response.Header.Set("Access-Control-Max-Age", corsMaxAge)
}

func corsMiddleware(origins []string) app.HandlerFunc {
	policy := newCORSPolicy(origins)
	return func(c context.Context, ctx *app.RequestContext) {
		policy.apply(ctx)
		if string(ctx.Method()) == consts.MethodOptions {
			ctx.AbortWithStatus(consts.StatusNoContent)
			return
		}
		ctx.Next(c)
	}
}
