package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Errors signalled by the entity builder and the dot path resolver.
var ErrInvalidAttributeOption = fmt.Errorf("invalid attribute option")
var ErrInvalidGeometry = fmt.Errorf("invalid geometry")
var ErrInvalidTemporalValue = fmt.Errorf("invalid temporal value")
var ErrPathNotFound = fmt.Errorf("path not found")
var ErrImmutableField = fmt.Errorf("immutable field")
var ErrTypeMismatch = fmt.Errorf("type mismatch")
var ErrMissingMandatoryField = fmt.Errorf("missing mandatory field")

// Errors mapped from broker responses.
var ErrAlreadyExists = fmt.Errorf("already exists")
var ErrInternal = fmt.Errorf("internal error")
var ErrNotFound = fmt.Errorf("not found")
var ErrRequest = fmt.Errorf("request error")
var ErrBadRequest = fmt.Errorf("bad request")
var ErrBadResponse = fmt.Errorf("bad response")
var ErrInvalidRequest = fmt.Errorf("invalid request")
var ErrTooManyResults = fmt.Errorf("too many results")
var ErrUnknownTenant = fmt.Errorf("unknown tenant")

type myError struct {
	msg    string
	target error
}

func (m myError) Error() string        { return m.msg }
func (m myError) Is(target error) bool { return target == m.target }

func NewInvalidAttributeOptionError(msg string) error {
	return &myError{msg: msg, target: ErrInvalidAttributeOption}
}

func NewInvalidGeometryError(msg string) error {
	return &myError{msg: msg, target: ErrInvalidGeometry}
}

func NewInvalidTemporalValueError(msg string) error {
	return &myError{msg: msg, target: ErrInvalidTemporalValue}
}

func NewPathNotFoundError(path string) error {
	return &myError{msg: fmt.Sprintf("no such path %q", path), target: ErrPathNotFound}
}

func NewImmutableFieldError(field string) error {
	return &myError{msg: fmt.Sprintf("field %q may not be removed", field), target: ErrImmutableField}
}

func NewTypeMismatchError(msg string) error {
	return &myError{msg: msg, target: ErrTypeMismatch}
}

func NewMissingMandatoryFieldError(field string) error {
	return &myError{msg: fmt.Sprintf("mandatory field %q is missing", field), target: ErrMissingMandatoryField}
}

func NewAlreadyExistsError(msg string) error {
	return &myError{msg: msg, target: ErrAlreadyExists}
}

func NewBadRequestDataError(msg string) error {
	return &myError{msg: msg, target: ErrBadRequest}
}

func NewInvalidRequestError(msg string) error {
	return &myError{msg: msg, target: ErrInvalidRequest}
}

func NewNotFoundError(msg string) error {
	return &myError{msg: msg, target: ErrNotFound}
}

func NewTooManyResultsError(msg string) error {
	return &myError{msg: msg, target: ErrTooManyResults}
}

func NewUnknownTenantError(msg string) error {
	return &myError{msg: msg, target: ErrUnknownTenant}
}

const (
	TypeAlreadyExists     string = "https://uri.etsi.org/ngsi-ld/errors/AlreadyExists"
	TypeBadRequestData    string = "https://uri.etsi.org/ngsi-ld/errors/BadRequestData"
	TypeInternalError     string = "https://uri.etsi.org/ngsi-ld/errors/InternalError"
	TypeInvalidRequest    string = "https://uri.etsi.org/ngsi-ld/errors/InvalidRequest"
	TypeNonexistentTenant string = "https://uri.etsi.org/ngsi-ld/errors/NonexistentTenant"
	TypeResourceNotFound  string = "https://uri.etsi.org/ngsi-ld/errors/ResourceNotFound"
	TypeTooManyResults    string = "https://uri.etsi.org/ngsi-ld/errors/TooManyResults"
)

// NewErrorFromProblemReport maps an RFC 7807 problem report received from a
// context broker to one of the sentinel errors above.
func NewErrorFromProblemReport(code int, contentType string, body []byte) error {
	report := &struct {
		Type   string `json:"type"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}{}

	err := json.Unmarshal(body, report)
	if err != nil {
		return fmt.Errorf("failed to process problem report from context source: %s", err.Error())
	}

	if code == http.StatusNotFound || report.Type == TypeResourceNotFound {
		return NewNotFoundError(report.Detail)
	}

	switch report.Type {
	case TypeNonexistentTenant:
		return NewUnknownTenantError(report.Detail)
	case TypeBadRequestData:
		return NewBadRequestDataError(report.Detail)
	case TypeInvalidRequest:
		return NewInvalidRequestError(report.Detail)
	case TypeAlreadyExists:
		return NewAlreadyExistsError(report.Detail)
	case TypeTooManyResults:
		return NewTooManyResultsError(report.Detail)
	}

	return &myError{
		msg: fmt.Sprintf(
			"[code: %d] unknown problem report of type \"%s\" with detail \"%s\" received",
			code, report.Type, report.Detail,
		),
		target: ErrInternal,
	}
}

/// ProblemReportContentType as required by https://tools.ietf.org/html/rfc7807
const ProblemReportContentType string = "application/problem+json"

// ProblemDetails stores details about a certain problem according to RFC 7807.
// The notification listener uses it when rejecting malformed requests.
type ProblemDetails struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`

	code int
}

func NewBadRequestData(detail string) *ProblemDetails {
	return &ProblemDetails{
		Type:   TypeBadRequestData,
		Title:  "Bad Request Data",
		Detail: detail,
		code:   http.StatusBadRequest,
	}
}

func NewInvalidRequest(detail string) *ProblemDetails {
	return &ProblemDetails{
		Type:   TypeInvalidRequest,
		Title:  "Invalid Request",
		Detail: detail,
		code:   http.StatusBadRequest,
	}
}

func NewInternalError(detail string) *ProblemDetails {
	return &ProblemDetails{
		Type:   TypeInternalError,
		Title:  "Internal Error",
		Detail: detail,
		code:   http.StatusInternalServerError,
	}
}

// ResponseCode returns the HTTP response code to be used when returning a specific problem
func (p *ProblemDetails) ResponseCode() int {
	if p.code != 0 {
		return p.code
	}

	return http.StatusBadRequest
}

// WriteResponse writes the contents of this instance to a http.ResponseWriter
func (p *ProblemDetails) WriteResponse(w http.ResponseWriter) {
	w.Header().Add("Content-Type", ProblemReportContentType)
	w.Header().Add("Content-Language", "en")
	w.WriteHeader(p.ResponseCode())

	pdbytes, err := json.MarshalIndent(p, "", "  ")
	if err == nil {
		w.Write(pdbytes)
	}
}
