package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	t.Run("counts commands by outcome", func(t *testing.T) {
		r := NewRecorder()
		r.Command("pause", nil)
		r.Command("pause", nil)
		r.Command("pause", errors.New("boom"))

		if got := testutil.ToFloat64(r.commands.WithLabelValues("pause", "ok")); got != 2 {
			t.Errorf("expected 2 ok pauses, got %v", got)
		}
		if got := testutil.ToFloat64(r.commands.WithLabelValues("pause", "error")); got != 1 {
			t.Errorf("expected 1 failed pause, got %v", got)
		}
	})

	t.Run("counts refreshes and linked users", func(t *testing.T) {
		r := NewRecorder()
		r.Refresh(true)
		r.Refresh(false)
		r.Linked(4)

		if got := testutil.ToFloat64(r.refreshes.WithLabelValues("error")); got != 1 {
			t.Errorf("expected 1 failed refresh, got %v", got)
		}
		if got := testutil.ToFloat64(r.linked); got != 4 {
			t.Errorf("expected 4 linked users, got %v", got)
		}
	})

	t.Run("nil recorder is a no-op", func(t *testing.T) {
		var r *Recorder
		r.Refresh(true)
		r.Catalog("search", time.Now(), nil)
		r.Command("play", nil)
		r.Linked(1)
	})

	t.Run("Handler exposes metrics", func(t *testing.T) {
		r := NewRecorder()
		r.Catalog("search", time.Now(), nil)

		rec := httptest.NewRecorder()
		r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

		body, _ := io.ReadAll(rec.Body)
		if !strings.Contains(string(body), "maestro_catalog_request_duration_seconds") {
			t.Errorf("expected catalog histogram in output, got:\n%s", body)
		}
	})
}
