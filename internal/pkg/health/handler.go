// Package health serves liveness, readiness and build information endpoints.
package health

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/labstack/echo/v4"
)

// BuildInfo contains information about the build
type BuildInfo struct {
	Version     string    `json:"version"`
	GitCommit   string    `json:"git_commit"`
	BuildTime   string    `json:"build_time"`
	ServiceName string    `json:"service_name"`
	GoVersion   string    `json:"go_version"`
	Hostname    string    `json:"hostname"`
	ServerTime  time.Time `json:"server_time"`
}

// CurrentBuildInfo returns the build information of the running binary,
// taken from VERSION, GIT_COMMIT and BUILD_TIME when they are set.
func CurrentBuildInfo(serviceName string) BuildInfo {
	info := BuildInfo{
		Version:     "development",
		GitCommit:   "unknown",
		BuildTime:   "unknown",
		ServiceName: serviceName,
		GoVersion:   runtime.Version(),
		Hostname:    "unknown",
	}
	if v := os.Getenv("VERSION"); v != "" {
		info.Version = v
	}
	if v := os.Getenv("GIT_COMMIT"); v != "" {
		info.GitCommit = v
	}
	if v := os.Getenv("BUILD_TIME"); v != "" {
		info.BuildTime = v
	}
	if h, err := os.Hostname(); err == nil {
		info.Hostname = h
	}
	return info
}

// Checker reports the health of one dependency
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) error

// CheckHealth calls f
func (f CheckerFunc) CheckHealth(ctx context.Context) error {
	return f(ctx)
}

// DependencyInfo represents health info for a dependency
type DependencyInfo struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Response is the body of the readiness endpoint
type Response struct {
	Status       string                    `json:"status"`
	Service      string                    `json:"service"`
	Version      string                    `json:"version,omitempty"`
	Timestamp    time.Time                 `json:"timestamp"`
	Dependencies map[string]DependencyInfo `json:"dependencies"`
}

// Service runs the registered checkers
type Service struct {
	checkers map[string]Checker
	logger   *logger.ZapLogger
}

// NewService creates a health service without checkers
func NewService(l *logger.ZapLogger) *Service {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &Service{checkers: make(map[string]Checker), logger: l}
}

// AddChecker registers a checker for a dependency
func (s *Service) AddChecker(name string, checker Checker) {
	s.checkers[name] = checker
}

// Check runs every checker
func (s *Service) Check(ctx context.Context) Response {
	resp := Response{
		Status:       "healthy",
		Timestamp:    time.Now(),
		Dependencies: make(map[string]DependencyInfo, len(s.checkers)),
	}

	names := make([]string, 0, len(s.checkers))
	for name := range s.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.checkers[name].CheckHealth(ctx); err != nil {
			s.logger.Warn("Health check failed",
				logger.String("dependency", name),
				logger.Err(err))
			resp.Dependencies[name] = DependencyInfo{Status: "unhealthy", Error: err.Error()}
			resp.Status = "unhealthy"
			continue
		}
		resp.Dependencies[name] = DependencyInfo{Status: "healthy"}
	}
	return resp
}

// RegisterHealthEndpoints registers /ping, /health, /health/live and
// /health/ready. A nil service makes readiness always succeed.
func RegisterHealthEndpoints(e *echo.Echo, serviceName string, service *Service) {
	info := CurrentBuildInfo(serviceName)
	if service == nil {
		service = NewService(nil)
	}

	e.GET("/ping", func(c echo.Context) error {
		b := info
		b.ServerTime = time.Now()
		return c.JSON(http.StatusOK, b)
	})

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	e.GET("/health/live", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "alive",
			"service": serviceName,
		})
	})

	e.GET("/health/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()

		resp := service.Check(ctx)
		resp.Service = serviceName
		resp.Version = info.Version

		status := http.StatusOK
		if resp.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, resp)
	})
}
