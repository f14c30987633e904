package errs

import (
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Error codes. The 1xxx range is request-local (client fault), 15xx is
// infrastructure (server fault).
const (
	CodeValidation     = 1001
	CodeAccess         = 1002
	CodeAuthorization  = 1003
	CodeNotFound       = 1004
	CodeToken          = 1005
	CodeInfrastructure = 1500
)

var (
	ErrValidation     = NewCodeError(CodeValidation, "invalid argument")
	ErrAccess         = NewCodeError(CodeAccess, "access denied to this module")
	ErrAuthorization  = NewCodeError(CodeAuthorization, "insufficient role")
	ErrNotFound       = NewCodeError(CodeNotFound, "record not found")
	ErrToken          = NewCodeError(CodeToken, "token invalid or expired")
	ErrInfrastructure = NewCodeError(CodeInfrastructure, "server error")
)

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: e.Detail}
}

// WithDetail returns a copy carrying extra client-visible detail.
func (e *CodeError) WithDetail(detail string) *CodeError {
	c := e.clone()
	if c.Detail == "" {
		c.Detail = detail
	} else {
		c.Detail += ", " + detail
	}
	return c
}

// WrapMsg attaches detail and a stack via pkg/errors.
func (e *CodeError) WrapMsg(msg string) error {
	return errors.WithStack(e.WithDetail(msg))
}

// Is lets errors.Is match any CodeError in a chain against the sentinel
// values above by code alone.
func (e *CodeError) Is(target error) bool {
	ce, ok := target.(*CodeError)
	return ok && ce.Code == e.Code
}

// Code extracts the CodeError behind err, or nil.
func Code(err error) *CodeError {
	var ce *CodeError
	if stderrors.As(err, &ce) {
		return ce
	}
	return nil
}

// WrapInfra turns a raw store/transport failure into ErrInfrastructure,
// keeping the cause in the chain for logs but not for clients.
func WrapInfra(err error, msg string) error {
	if err == nil {
		return nil
	}
	if Code(err) != nil {
		return err
	}
	return errors.Wrap(&CodeError{Code: CodeInfrastructure, Msg: ErrInfrastructure.Msg}, msg+": "+err.Error())
}
