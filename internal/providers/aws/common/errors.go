package common

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// ErrorCode returns the AWS API error code carried by err, or "" when err is
// not an API error.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// HasErrorCode reports whether err is an API error with one of codes.
func HasErrorCode(err error, codes ...string) bool {
	code := ErrorCode(err)
	if code == "" {
		return false
	}
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is any of the service-specific "not found"
// codes (InvalidInstanceID.NotFound, NoSuchEntity, NoSuchBucket,
// DBInstanceNotFound, ...).
func IsNotFound(err error) bool {
	code := ErrorCode(err)
	if code == "" {
		return false
	}
	return strings.Contains(code, "NotFound") ||
		strings.HasPrefix(code, "NoSuch") ||
		code == "TrailNotFoundException"
}

// IsAccessDenied reports whether err is an authorization failure.
func IsAccessDenied(err error) bool {
	return HasErrorCode(err,
		"AccessDenied",
		"AccessDeniedException",
		"UnauthorizedOperation",
		"AuthorizationError",
	)
}
