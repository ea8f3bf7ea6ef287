package wps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tempus/utils/timer"
	"tempus/xmlutil"
)

const (
	defaultMaxRequestSize = 4 << 20
	shutdownTimeout       = 10 * time.Second
)

type Options struct {
	Listen string
	// ScriptURL is advertised in capabilities, the URL of the request is
	// used when empty.
	ScriptURL      string
	ReadTimeout    time.Duration
	MaxRequestSize int64
	// State, when set, is reported by the health endpoint.
	State func() string
}

type Server struct {
	log      *zap.Logger
	opts     Options
	services *Registry
	metrics  *Metrics
	engine   *gin.Engine
}

// NewServer creates the HTTP front end, metrics are registered with reg and
// served from it.
func NewServer(opts Options, services *Registry, reg *prometheus.Registry, log *zap.Logger) (*Server, error) {
	m, err := NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("unable to register metrics: %w", err)
	}
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = defaultMaxRequestSize
	}
	s := &Server{
		log:      log.Named("wps"),
		opts:     opts,
		services: services,
		metrics:  m,
	}

	e := gin.New()
	e.HandleMethodNotAllowed = true
	e.Use(s.logRequests, gin.CustomRecovery(s.recovered))
	e.NoMethod(func(c *gin.Context) {
		s.status(c, http.StatusMethodNotAllowed, "Method not allowed")
	})
	e.GET("/wps", s.handleGet)
	e.POST("/wps", s.handlePost)
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	e.GET("/health", s.handleHealth)
	s.engine = e
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.engine,
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: s.opts.ReadTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.log.Info("WPS server listening", zap.String("address", s.opts.Listen))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("unable to shut server down: %w", err)
	}
	s.log.Info("WPS server stopped")
	return nil
}

func (s *Server) logRequests(c *gin.Context) {
	t := timer.New()
	c.Next()
	s.log.Debug("Request served",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Float64("ms", t.ElapsedMs()))
}

func (s *Server) recovered(c *gin.Context, v any) {
	s.log.Error("Panic while serving request", zap.Any("panic", v), zap.Stack("stack"))
	s.exception(c, "", http.StatusInternalServerError, NoApplicableCode, "Internal server error")
}

func (s *Server) handleHealth(c *gin.Context) {
	h := gin.H{"status": "ok", "services": len(s.services.Services())}
	if s.opts.State != nil {
		h["state"] = s.opts.State()
	}
	c.JSON(http.StatusOK, h)
}

// status answers with a plain error, used before the request is known to
// be a WPS one.
func (s *Server) status(c *gin.Context, code int, msg string) {
	s.metrics.request("", code)
	c.String(code, "%s\n", msg)
}

func (s *Server) exception(c *gin.Context, operation string, code int, exceptionCode, msg string) {
	s.metrics.request(operation, code)
	s.write(c, code, ExceptionReport(exceptionCode, msg))
}

func (s *Server) document(c *gin.Context, operation string, doc *etree.Document) {
	s.metrics.request(operation, http.StatusOK)
	s.write(c, http.StatusOK, doc)
}

func (s *Server) write(c *gin.Context, code int, doc *etree.Document) {
	out, err := doc.WriteToBytes()
	if err != nil {
		s.log.Error("Unable to serialize response", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(code, "text/xml; charset=utf-8", out)
}

func (s *Server) scriptURL(c *gin.Context) string {
	if s.opts.ScriptURL != "" {
		return s.opts.ScriptURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.Path
}

// handleGet reads key value pairs, keys are case insensitive.
func (s *Server) handleGet(c *gin.Context) {
	q := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			q[strings.ToLower(k)] = v[0]
		}
	}
	s.dispatch(c, http.MethodGet, q, nil)
}

// handlePost reads an XML document, its root names the operation.
func (s *Server) handlePost(c *gin.Context) {
	if ct := c.ContentType(); ct != "text/xml" && ct != "application/xml" {
		s.status(c, http.StatusNotAcceptable, "Wrong content-type, must be text/xml")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxRequestSize))
	if err != nil {
		s.exception(c, "", http.StatusBadRequest, InvalidParameterValue, "Unable to read request: "+err.Error())
		return
	}
	root, err := xmlutil.Parse(string(body))
	if err != nil {
		s.exception(c, "", http.StatusBadRequest, InvalidParameterValue, "Malformed XML request: "+err.Error())
		return
	}
	q := map[string]string{
		"request": root.Tag,
		"service": root.SelectAttrValue("service", ""),
		"version": root.SelectAttrValue("version", ""),
	}
	s.dispatch(c, http.MethodPost, q, root)
}

func (s *Server) dispatch(c *gin.Context, method string, q map[string]string, root *etree.Element) {
	if !strings.EqualFold(q["service"], "wps") {
		s.status(c, http.StatusBadRequest, "Only 'wps' service is supported")
		return
	}
	if q["version"] != Version {
		s.status(c, http.StatusBadRequest, "Only '"+Version+"' version is supported")
		return
	}

	operation := q["request"]
	switch operation {
	case "GetCapabilities":
		if method != http.MethodGet {
			s.status(c, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		s.document(c, operation, GetCapabilities(s.scriptURL(c), s.services.Services()))
	case "DescribeProcess":
		if method != http.MethodGet {
			s.status(c, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		services, err := s.describe(q["identifier"])
		if err != nil {
			s.exception(c, operation, http.StatusBadRequest, InvalidParameterValue, err.Error())
			return
		}
		s.document(c, operation, DescribeProcess(services))
	case "Execute":
		if method != http.MethodPost {
			s.status(c, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		s.execute(c, root)
	default:
		s.exception(c, operation, http.StatusBadRequest, OperationNotSupported,
			"Request is for an operation that is not supported by this server")
	}
}

// describe resolves a comma separated list of identifiers, "all" selects
// every service.
func (s *Server) describe(identifiers string) ([]*Service, error) {
	if identifiers == "" {
		return nil, errors.New("missing identifier")
	}
	if strings.EqualFold(identifiers, "all") {
		return s.services.Services(), nil
	}
	var list []*Service
	for id := range strings.SplitSeq(identifiers, ",") {
		svc, ok := s.services.Get(strings.TrimSpace(id))
		if !ok {
			return nil, fmt.Errorf("unknown identifier %q", id)
		}
		list = append(list, svc)
	}
	return list, nil
}

func (s *Server) execute(c *gin.Context, root *etree.Element) {
	const operation = "Execute"

	id, in, err := ParseExecute(root)
	if err != nil {
		s.exception(c, operation, http.StatusBadRequest, InvalidParameterValue, err.Error())
		return
	}
	svc, ok := s.services.Get(id)
	if !ok {
		s.exception(c, operation, http.StatusBadRequest, InvalidParameterValue, "Unknown service identifier "+id)
		return
	}

	t := timer.New()
	out, err := svc.Run(c.Request.Context(), in)
	s.metrics.execution(id, err, t.Elapsed())
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidParameter):
			s.exception(c, operation, http.StatusBadRequest, InvalidParameterValue, err.Error())
		case errors.Is(err, ErrNotApplicable):
			s.exception(c, operation, http.StatusBadRequest, NoApplicableCode, err.Error())
		default:
			s.log.Error("Service failed", zap.String("service", id), zap.Error(err))
			s.exception(c, operation, http.StatusInternalServerError, NoApplicableCode, err.Error())
		}
		return
	}
	s.log.Debug("Service executed", zap.String("service", id), zap.Float64("ms", t.ElapsedMs()))
	s.document(c, operation, ExecuteResponse(svc, out, instanceID()))
}

func instanceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.URN()
}
