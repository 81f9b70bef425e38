package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SyncErrorBadInput         = "SYNC_BAD_INPUT"
	SyncErrorNotFound         = "SYNC_NOT_FOUND"
	SyncErrorPermissionDenied = "SYNC_PERMISSION_DENIED"
	SyncErrorDuplicateBlocked = "SYNC_DUPLICATE_BLOCKED"
	SyncErrorRateLimited      = "SYNC_RATE_LIMITED"
	SyncErrorProviderFailed   = "SYNC_PROVIDER_FAILED"
	SyncErrorInternal         = "SYNC_INTERNAL_ERROR"
)

// IsNotFound reports whether err wraps any of the engine's not-found
// sentinels.
func IsNotFound(err error) bool {
	switch {
	case goerrors.Is(err, ErrWorkoutNotFound),
		goerrors.Is(err, ErrConnectionNotFound),
		goerrors.Is(err, ErrActivityNotFound),
		goerrors.Is(err, ErrSyncRecordNotFound),
		goerrors.Is(err, ErrPreferenceNotFound):
		return true
	}
	return false
}

// MapError translates any engine failure into a categorized error envelope
// the enclosing web handlers can render without leaking internals. Every
// anticipated failure class maps to a meaningful category; nothing surfaces
// as a bare internal error unless it really is one.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureSyncErrorEnvelope(richErr)
	}

	switch {
	case goerrors.Is(err, ErrNotAuthorized):
		return newSyncError(err.Error(), goerrors.CategoryAuthz, SyncErrorPermissionDenied)
	case goerrors.Is(err, ErrDuplicateImport):
		return newSyncError(err.Error(), goerrors.CategoryConflict, SyncErrorDuplicateBlocked)
	case goerrors.Is(err, ErrWorkoutNotFound),
		goerrors.Is(err, ErrConnectionNotFound),
		goerrors.Is(err, ErrActivityNotFound),
		goerrors.Is(err, ErrSyncRecordNotFound),
		goerrors.Is(err, ErrPreferenceNotFound):
		return newSyncError(err.Error(), goerrors.CategoryNotFound, SyncErrorNotFound)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newSyncError(err.Error(), goerrors.CategoryRateLimit, SyncErrorRateLimited)
	case strings.Contains(msg, "strava"), strings.Contains(msg, "provider"):
		return newSyncError(err.Error(), goerrors.CategoryOperation, SyncErrorProviderFailed)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newSyncError(err.Error(), goerrors.CategoryBadInput, SyncErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureSyncErrorEnvelope(mapped)
}

func newSyncError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureSyncErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureSyncErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = syncHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultSyncTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultSyncTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return SyncErrorBadInput
	case goerrors.CategoryNotFound:
		return SyncErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return SyncErrorPermissionDenied
	case goerrors.CategoryConflict:
		return SyncErrorDuplicateBlocked
	case goerrors.CategoryRateLimit:
		return SyncErrorRateLimited
	case goerrors.CategoryOperation:
		return SyncErrorProviderFailed
	default:
		return SyncErrorInternal
	}
}

func syncHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
