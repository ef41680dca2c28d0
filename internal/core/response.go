package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"recordstack/internal/types"
)

// maxRequestBodySize caps request bodies at 1 MB.
const maxRequestBodySize = 1 << 20

// JSON writes a JSON response with the given status code and payload.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(errorBody(r, types.ErrCodeInternalUnexpected,
			"failed to marshal response", nil))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// errorBody builds the flat error payload: detail, error_code and request_id
// at the top level, with any structured details merged in beside them. The
// fixed keys win on collision.
func errorBody(r *http.Request, code types.ErrorCode, message string, details map[string]any) map[string]any {
	body := make(map[string]any, len(details)+3)
	for k, v := range details {
		body[k] = v
	}
	body["detail"] = message
	body["error_code"] = string(code)
	body["request_id"] = types.GetRequestID(r.Context())
	return body
}

// Error writes an error response. An AppError anywhere in the chain supplies
// the status code, error code and details; any other error becomes an opaque
// 500 so internal failures never leak to clients.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		JSON(w, r, appErr.HTTPStatus(), errorBody(r, appErr.Code, appErr.Message, appErr.Details))
		return
	}
	JSON(w, r, http.StatusInternalServerError,
		errorBody(r, types.ErrCodeInternalUnexpected, "an unexpected error occurred", nil))
}

// WriteError is Error with an explicit code and message, for middleware that
// constructs errors inline.
func WriteError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	Error(w, r, types.NewAppError(code, message, nil))
}

// DecodeJSON reads the request body into dst with a 1 MB cap, strict field
// checking and a single-value requirement. Failures come back as
// VALIDATION_ERROR AppErrors suitable for Error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidation,
			"request body must contain a single JSON object", nil)
	}
	return nil
}

func mapDecodeError(err error) *types.AppError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return types.NewAppError(types.ErrCodeValidation,
			"request body must not exceed 1MB", err)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return types.NewAppError(types.ErrCodeValidation,
			"malformed JSON in request body", err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return types.NewAppErrorWithDetails(types.ErrCodeValidation,
			"invalid value for field", err, map[string]any{
				"field":    typeErr.Field,
				"expected": typeErr.Type.String(),
			})
	}

	if strings.HasPrefix(err.Error(), "json: unknown field") {
		return types.NewAppError(types.ErrCodeValidation,
			"unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "), err)
	}

	if errors.Is(err, io.EOF) {
		return types.NewAppError(types.ErrCodeValidation,
			"request body must not be empty", err)
	}

	// A body cut off mid-value surfaces as an unexpected EOF, not a
	// SyntaxError.
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return types.NewAppError(types.ErrCodeValidation,
			"malformed JSON in request body", err)
	}

	return types.NewAppError(types.ErrCodeValidation,
		"invalid JSON in request body", err)
}
