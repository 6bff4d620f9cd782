package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/bulkpromo/pkg/errors"
)

// DownstreamErrorResponse mirrors the {"error": {...}} envelope written by
// httputil.WriteError.
type DownstreamErrorResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError reads a non-2xx response and translates it into an
// AppError. Structured bodies keep their message. The body is consumed and
// closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.ExternalService(serviceName,
			fmt.Errorf("status %d (failed to read body: %w)", resp.StatusCode, err))
	}
	return mapDownstreamError(resp.StatusCode, body, serviceName)
}

// TranslateError converts a transport, breaker, or ServerError failure into
// an AppError. Errors that are already AppErrors pass through.
func TranslateError(err error, serviceName string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return mapDownstreamError(srvErr.StatusCode, srvErr.Body, serviceName)
	}
	return apperrors.ExternalService(serviceName, err)
}

func mapDownstreamError(status int, body []byte, serviceName string) error {
	message := string(body)
	var downstream DownstreamErrorResponse
	if json.Unmarshal(body, &downstream) == nil && downstream.Error != nil {
		message = downstream.Error.Message
	}
	qualified := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(serviceName+" resource", message)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case status == http.StatusGone:
		return apperrors.Gone(qualified)
	default:
		return apperrors.ExternalService(serviceName, fmt.Errorf("status %d: %s", status, message))
	}
}

// IsClientError reports whether status is a 4xx.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
