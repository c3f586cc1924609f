// Package gateway fronts the fintrack services: it verifies the caller once,
// stamps the resolved identity on the request and proxies it to the upstream
// that owns the path prefix.
package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
)

const (
	HeaderUserID  = "X-User-ID"
	HeaderUserUID = "X-User-UID"
)

// publicAuthRoutes are forwarded without a credential.
var publicAuthRoutes = map[string]bool{
	"/api/auth/register":                  true,
	"/api/auth/login":                     true,
	"/api/auth/reset-password":            true,
	"/api/auth/verify-reset-password-otp": true,
	"/api/auth/set-new-password":          true,
	"/api/auth/verify-email-otp":          true,
	"/api/auth/resend-otp":                true,
	"/api/auth/refresh":                   true,
}

type route struct {
	prefix   string
	service  string
	upstream *url.URL
	proxy    *httputil.ReverseProxy
}

// Gateway routes requests by longest matching path prefix.
type Gateway struct {
	routes   []route
	authn    *auth.Authenticator
	logger   *log.Logger
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time
}

// Prefixes returns the path prefixes owned by a service.
func Prefixes(service string) []string {
	prefixes := []string{"/api/" + service}
	if service == config.ServiceUser {
		prefixes = append(prefixes, "/uploads")
	}
	return prefixes
}

// New builds a gateway over the upstreams in cfg.ServiceURLs.
func New(cfg *config.Config, authn *auth.Authenticator, logger *log.Logger) (*Gateway, error) {
	if authn == nil {
		return nil, fmt.Errorf("gateway: authenticator is required")
	}
	gwLogger := logger.WithComponent(log.ComponentGateway)
	detector := security.NewDetector(logger)
	g := &Gateway{
		authn:    authn,
		logger:   gwLogger,
		detector: detector,
		tracer:   trace.NewMiddleware(gwLogger, detector.ExtractClientIP),
		started:  time.Now(),
	}

	for service, raw := range cfg.ServiceURLs {
		upstream, err := url.Parse(raw)
		if err != nil || upstream.Scheme == "" || upstream.Host == "" {
			return nil, fmt.Errorf("gateway: invalid upstream URL for %s: %q", service, raw)
		}
		for _, prefix := range Prefixes(service) {
			g.routes = append(g.routes, route{
				prefix:   prefix,
				service:  service,
				upstream: upstream,
				proxy:    g.newProxy(service, upstream),
			})
		}
		g.logger.Info("Upstream mounted", "service", service, "upstream", upstream.String())
	}
	if len(g.routes) == 0 {
		return nil, fmt.Errorf("gateway: no upstream services configured")
	}
	sort.Slice(g.routes, func(i, j int) bool {
		return len(g.routes[i].prefix) > len(g.routes[j].prefix)
	})
	return g, nil
}

func (g *Gateway) newProxy(service string, upstream *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			if id, ok := auth.FromContext(pr.In.Context()); ok {
				if id.UserID != "" {
					pr.Out.Header.Set(HeaderUserID, id.UserID)
				}
				if id.UID != "" {
					pr.Out.Header.Set(HeaderUserUID, id.UID)
				}
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.LogError(r.Context(), log.FromContext(r.Context()), "Upstream request failed", err, "proxy "+service,
				log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
			writeMessage(w, http.StatusInternalServerError, "Internal server error")
		},
	}
}

// Handler returns the gateway with tracing and request screening applied.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", g.handleHealth)
	mux.Handle("/", http.HandlerFunc(g.forward))
	return g.tracer.Middleware(g.detector.Middleware(mux))
}

func (g *Gateway) forward(w http.ResponseWriter, r *http.Request) {
	// Identity headers are only ever set by the gateway.
	r.Header.Del(HeaderUserID)
	r.Header.Del(HeaderUserUID)

	rt, ok := g.match(r.URL.Path)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Route not found")
		return
	}

	if requiresIdentity(r.URL.Path) {
		id, err := g.authn.Authenticate(r)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		ctx := auth.WithIdentity(r.Context(), id)
		logger := log.FromContext(ctx).With(log.FieldUserID, id.UserID)
		r = r.WithContext(log.NewContext(ctx, logger))
	}
	rt.proxy.ServeHTTP(w, r)
}

func (g *Gateway) match(path string) (route, bool) {
	for _, rt := range g.routes {
		if path == rt.prefix || strings.HasPrefix(path, rt.prefix+"/") {
			return rt, true
		}
	}
	return route{}, false
}

func requiresIdentity(path string) bool {
	if strings.HasPrefix(path, "/uploads/") {
		return false
	}
	return !publicAuthRoutes[strings.TrimSuffix(path, "/")]
}

func (g *Gateway) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	if kind == core.KindInternal {
		log.LogError(r.Context(), log.FromContext(r.Context()), "Authentication failed", err, "authenticate",
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeMessage(w, kind.HTTPStatus(), core.MessageOf(err))
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	upstreams := make(map[string]string, len(g.routes))
	for _, rt := range g.routes {
		upstreams[rt.prefix] = rt.upstream.String()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(g.started).Round(time.Second).String(),
		"upstreams": upstreams,
	})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
