package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseBuilderDefaults(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().Write(w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Empty(t, w.Header().Get("HX-Trigger"))
}

func TestResponseBuilderSubmitEvents(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerBoardRefresh("2024-01-15").
		TriggerModalClosed().
		TriggerSuccessNotification("3 Record rows saved").
		Write(w)

	var events map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &events))
	require.Len(t, events, 3)
	assert.JSONEq(t, `{"date":"2024-01-15"}`, string(events[EventBoardRefresh]))
	assert.JSONEq(t, `{}`, string(events[EventModalClosed]))
	assert.JSONEq(t, `{"type":"success","message":"3 Record rows saved","duration":3000}`, string(events[EventShowNotification]))
}

func TestResponseBuilderLaterNotificationWins(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerWarningNotification("first").
		TriggerErrorNotification("second").
		Write(w)

	var events map[string]notificationEvent
	require.NoError(t, json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &events))
	assert.Equal(t, NotificationError, events[EventShowNotification].Type)
	assert.Equal(t, "second", events[EventShowNotification].Message)
}

func TestResponseBuilderBodyHTML(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		Status(http.StatusConflict).
		Header("X-Request-ID", "req_1").
		BodyHTML([]byte("<form></form>")).
		Write(w)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_1", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "<form></form>", w.Body.String())
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{"bad request", BadRequestError("invalid mode"), http.StatusBadRequest,
			`<div class="notice error" role="alert">invalid mode</div>`},
		{"unprocessable", UnprocessableEntityError("invalid date"), http.StatusUnprocessableEntity,
			`<div class="notice error" role="alert">invalid date</div>`},
		{"internal", InternalServerError("Export failed"), http.StatusInternalServerError,
			`<div class="notice error" role="alert">Export failed</div>`},
		{"not found", NotFoundError("Page not found"), http.StatusNotFound,
			`<div class="notice error" role="alert">Page not found</div>`},
		{"escaped", BadRequestError("<script>x</script>"), http.StatusBadRequest,
			`<div class="notice error" role="alert">&lt;script&gt;x&lt;/script&gt;</div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestTooManyRequestsError(t *testing.T) {
	w := httptest.NewRecorder()
	TooManyRequestsError().Write(w)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Header().Get("HX-Trigger"), `"type":"error"`)
}

func TestMethodNotAllowedError(t *testing.T) {
	w := httptest.NewRecorder()
	MethodNotAllowedError("GET, HEAD").Write(w)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, HEAD", w.Header().Get("Allow"))
}
