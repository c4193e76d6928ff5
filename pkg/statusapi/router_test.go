package statusapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xui-fleet/internal/services"
)

type fakeFleet struct {
	alive map[string]bool
	order []string
}

func (f *fakeFleet) ServerIDs() []string { return f.order }

func (f *fakeFleet) IsAlive(ctx context.Context, sid string) bool { return f.alive[sid] }

func (f *fakeFleet) LoadReport(ctx context.Context) []services.ServerLoad {
	report := make([]services.ServerLoad, 0, len(f.order))
	for _, sid := range f.order {
		report = append(report, services.ServerLoad{ServerID: sid, Clients: 2, Max: 15, Alive: f.alive[sid]})
	}
	return report
}

func newTestRouter(fleet Fleet, reg *prometheus.Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewRouter(Deps{Fleet: fleet, Registry: reg, Logger: logger})
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthz(t *testing.T) {
	fleet := &fakeFleet{order: []string{"a", "b"}, alive: map[string]bool{"a": true}}
	w := get(t, newTestRouter(fleet, nil), "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		OK      bool            `json:"ok"`
		Servers map[string]bool `json:"servers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, map[string]bool{"a": true, "b": false}, body.Servers)
}

func TestHealthzNoneAlive(t *testing.T) {
	fleet := &fakeFleet{order: []string{"a"}, alive: map[string]bool{}}
	w := get(t, newTestRouter(fleet, nil), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServers(t *testing.T) {
	fleet := &fakeFleet{order: []string{"a", "b"}, alive: map[string]bool{"a": true, "b": true}}
	w := get(t, newTestRouter(fleet, nil), "/servers")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Servers []services.ServerLoad `json:"servers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Servers, 2)
	assert.Equal(t, "a", body.Servers[0].ServerID)
	assert.Equal(t, 2, body.Servers[0].Clients)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "status_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	fleet := &fakeFleet{}
	w := get(t, newTestRouter(fleet, reg), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "status_test_total 1"))

	assert.Equal(t, http.StatusNotFound, get(t, newTestRouter(fleet, nil), "/metrics").Code)
}
