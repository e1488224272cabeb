// Package rest implements store.Store on hosted table services reached over
// HTTP: Airtable, NocoDB and Supabase (PostgREST).
package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/utils"
)

// Record is one row as returned by a table service.
type Record struct {
	ID     string
	Fields map[string]any
}

// Condition is an equality test on a remote column.
type Condition struct {
	Field string
	Value any
}

// recordAPI is the part that differs between services.
type recordAPI interface {
	List(ctx context.Context, table string, where []Condition) ([]Record, error)
	Get(ctx context.Context, table, id string) (Record, error)
	Create(ctx context.Context, table string, fields map[string]any) (Record, error)
	Update(ctx context.Context, table, id string, fields map[string]any) (Record, error)
}

// ClientOptions configures the shared HTTP client.
type ClientOptions struct {
	BaseURL    string
	Headers    map[string]string
	Retries    int
	RetryWait  time.Duration
	RetryMax   time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client
}

func newClient(opts ClientOptions, logger *zap.Logger) *resty.Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	var client *resty.Client
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	} else {
		client = resty.New()
	}

	return client.
		SetBaseURL(opts.BaseURL).
		SetHeaders(opts.Headers).
		SetHeader("Content-Type", "application/json").
		SetTimeout(opts.Timeout).
		SetLogger(logger.Sugar()).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMax).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := resp.StatusCode()
			return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		}).
		AddRetryHook(func(resp *resty.Response, err error) {
			fields := []zap.Field{}
			if resp != nil && resp.Request != nil {
				fields = append(fields, zap.Int("attempt", resp.Request.Attempt), zap.Int("status", resp.StatusCode()))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			logger.Warn("retrying table service request", fields...)
		})
}

// StatusError is a non-2xx reply from a table service.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, utils.TruncateForLog(e.Body, 300))
}

func (e *StatusError) Is(target error) bool {
	return target == store.ErrNotFound && e.Status == http.StatusNotFound
}

// checkResponse turns transport failures and error statuses into errors.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("table service request: %w", err)
	}
	if resp.IsError() {
		return &StatusError{
			Method: resp.Request.Method,
			URL:    resp.Request.URL,
			Status: resp.StatusCode(),
			Body:   resp.String(),
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
