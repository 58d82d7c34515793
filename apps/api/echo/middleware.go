package echoapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/mystudenthub/backend/core/session"
)

// adminGate lets resolved admins through.
// Any other resolved session is sent to the landing page: browsers get a redirect,
// API clients get a 403 naming it.
func (s *Server) adminGate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sess, ok := session.FromContext(ctx.Request().Context())
		if !ok {
			return errUnauthorized
		}
		gate := session.NewAdminGate(sess, s.deps.Conf.Server.LandingPath, nil)
		defer gate.Close()

		d := gate.Decision()
		switch d.Outcome {
		case session.Render:
			return next(ctx)
		case session.Redirect:
			if acceptsHTML(ctx.Request()) {
				return ctx.Redirect(http.StatusSeeOther, d.Location)
			}
			return ctx.JSON(http.StatusForbidden, echo.Map{"error": "permission denied", "redirect": d.Location})
		default:
			ctx.Response().Header().Set("Retry-After", "1")
			return errSessionNotResolved
		}
	}
}

func acceptsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

// newRateLimit limits requests per client IP. rate uses the limiter format, e.g. "10-M".
func newRateLimit(rate string) (echo.MiddlewareFunc, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	lim := limiter.New(memory.NewStore(), r)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			lctx, err := lim.Get(ctx.Request().Context(), ctx.RealIP())
			if err != nil {
				return errors.Wrap(err, "checking rate limit")
			}
			h := ctx.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
			if lctx.Reached {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}, nil
}

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mystudenthub_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mystudenthub_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)

		if err != nil {
			ctx.Error(err) // write the response so its status is known
		}
		code := ctx.Response().Status
		route := ctx.Path()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, ctx.Request().Method, strconv.Itoa(code)).Inc()
		m.duration.WithLabelValues(route, ctx.Request().Method).Observe(time.Since(start).Seconds())
		return nil
	}
}
