package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAbortWritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        *Error
		wantStatus int
		wantDetail string
	}{
		{name: "bad request", err: BadRequest(errors.New("limit must be a number")), wantStatus: http.StatusBadRequest, wantDetail: "limit must be a number"},
		{name: "not found", err: NotFound(nil), wantStatus: http.StatusNotFound},
		{name: "internal hides cause", err: Internal(errors.New("db password leaked")), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Set(RequestIDKey, "req-1")

			Abort(c, tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var body Error
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tt.wantStatus || body.RequestID != "req-1" || body.Detail != tt.wantDetail {
				t.Fatalf("unexpected envelope %+v", body)
			}
			if !c.IsAborted() || len(c.Errors) != 1 {
				t.Fatal("expected aborted context with a recorded error")
			}
		})
	}
}
