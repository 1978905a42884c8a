package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("failed to read metrics: %v", err)
	}
	return string(body)
}

func TestCollectorLoginMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginSuccess()
	c.RecordLoginSuccess()
	c.RecordLoginFailure("AUTH_FAILED")
	c.RecordLoginFailure("")

	body := scrape(t, reg)
	if !strings.Contains(body, "noteman_login_success_total 2") {
		t.Errorf("login success count missing:\n%s", body)
	}
	if !strings.Contains(body, `noteman_login_fail_total{error_code="AUTH_FAILED"} 1`) {
		t.Errorf("login failure count missing:\n%s", body)
	}
	if !strings.Contains(body, `noteman_login_fail_total{error_code="unknown"} 1`) {
		t.Errorf("blank error code should map to unknown:\n%s", body)
	}
}

func TestCollectorSessionExpiredMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionExpired()

	body := scrape(t, reg)
	if !strings.Contains(body, "noteman_session_expired_total 1") {
		t.Errorf("session expired count missing:\n%s", body)
	}
}

func TestCollectorGatewayMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGatewayCall("select", nil, 5*time.Millisecond)
	c.RecordGatewayCall("select", errors.New("boom"), 5*time.Millisecond)
	c.RecordGatewayCall("insert", nil, 5*time.Millisecond)

	body := scrape(t, reg)
	if !strings.Contains(body, `noteman_gateway_calls_total{operation="select",result="success"} 1`) {
		t.Errorf("select success count missing:\n%s", body)
	}
	if !strings.Contains(body, `noteman_gateway_calls_total{operation="select",result="error"} 1`) {
		t.Errorf("select error count missing:\n%s", body)
	}
	if !strings.Contains(body, `noteman_gateway_latency_seconds_count{operation="insert"} 1`) {
		t.Errorf("insert latency observation missing:\n%s", body)
	}
}

func TestCollectorHTTPStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(401)

	body := scrape(t, reg)
	if !strings.Contains(body, `noteman_http_status_total{status_code="200"} 2`) {
		t.Errorf("200 count missing:\n%s", body)
	}
	if !strings.Contains(body, `noteman_http_status_total{status_code="401"} 1`) {
		t.Errorf("401 count missing:\n%s", body)
	}
}
