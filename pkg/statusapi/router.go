package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"xui-fleet/internal/services"
)

const probeTimeout = 15 * time.Second

// Fleet is the part of the server manager the status API reads
type Fleet interface {
	ServerIDs() []string
	IsAlive(ctx context.Context, sid string) bool
	LoadReport(ctx context.Context) []services.ServerLoad
}

type Deps struct {
	Fleet    Fleet
	Registry *prometheus.Registry
	Logger   *logrus.Logger
}

// NewRouter builds the status endpoints: /healthz, /servers and /metrics
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(deps.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		defer cancel()

		servers := gin.H{}
		alive := 0
		for _, sid := range deps.Fleet.ServerIDs() {
			ok := deps.Fleet.IsAlive(ctx, sid)
			servers[sid] = ok
			if ok {
				alive++
			}
		}

		status := http.StatusOK
		if alive == 0 {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ok": alive > 0, "servers": servers})
	})

	r.GET("/servers", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		defer cancel()

		c.JSON(http.StatusOK, gin.H{"servers": deps.Fleet.LoadReport(ctx)})
	})

	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	return r
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("Status request")
	}
}

// Serve runs the status API on addr until ctx is done
func Serve(ctx context.Context, addr string, handler http.Handler, logger *logrus.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Status API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
