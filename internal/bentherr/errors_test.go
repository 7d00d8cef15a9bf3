package bentherr

import (
	"errors"
	"net/http"
	"testing"
)

func TestHTTPStatus_MappingTable(t *testing.T) {
	cases := map[Code]int{
		InvalidManifest:  http.StatusBadRequest,
		ValidationFailed: http.StatusBadRequest,
		Unauthorized:     http.StatusUnauthorized,
		Forbidden:        http.StatusForbidden,
		StudyNotFound:    http.StatusNotFound,
		JobNotFound:      http.StatusNotFound,
		RateLimited:      http.StatusTooManyRequests,
		QuotaExceeded:    http.StatusTooManyRequests,
		InternalError:    http.StatusInternalServerError,
		DatabaseError:    http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestHTTPStatus_UnknownCodeDefaultsTo500(t *testing.T) {
	if got := HTTPStatus(Code("SOMETHING_UNMAPPED")); got != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unmapped code, got %d", got)
	}
}

func TestNew_DerivesRetryableFromDefaultTable(t *testing.T) {
	if err := New(RateLimited, "too fast"); !err.Retryable {
		t.Error("RATE_LIMITED should be retryable by default")
	}
	if err := New(AuthFailed, "bad creds"); err.Retryable {
		t.Error("AUTH_FAILED should not be retryable by default")
	}
}

func TestWrap_PreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(NetworkError, "dial failed", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatal("expected errors.As to match ServiceError")
	}
	if svcErr.Code != NetworkError {
		t.Errorf("expected code NETWORK_ERROR, got %s", svcErr.Code)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(errors.New("plain error")) {
		t.Error("a plain error should not be considered retryable")
	}
	if !IsRetryable(New(Timeout, "context deadline exceeded")) {
		t.Error("TIMEOUT should be retryable")
	}
	if IsRetryable(New(CaptchaRequired, "captcha challenge")) {
		t.Error("CAPTCHA_REQUIRED should not be retryable")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(ProxyError, "proxy dead")); got != ProxyError {
		t.Errorf("expected PROXY_ERROR, got %s", got)
	}
	if got := CodeOf(errors.New("not a service error")); got != "" {
		t.Errorf("expected empty code for non-ServiceError, got %s", got)
	}
}

func TestNotFound_IsNeverRetryable(t *testing.T) {
	err := NotFound(StudyNotFound, "study xyz not found")
	if err.Retryable {
		t.Error("NotFound errors must never be retryable")
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected 404, got %d", err.HTTPStatus)
	}
}
