package daemon

import (
	"encoding/json"
	"errors"

	serrors "github.com/Aman-CERP/semsearch/internal/errors"
	"github.com/Aman-CERP/semsearch/internal/index"
)

// JSON-RPC 2.0 method names. The seven operation codes plus two
// housekeeping methods.
const (
	MethodCreateIndex    = "create_index"
	MethodDeleteIndex    = "delete_index"
	MethodListIndexes    = "list_indexes"
	MethodAddDocument    = "add_document"
	MethodRemoveDocument = "remove_document"
	MethodListDocuments  = "list_documents"
	MethodQuery          = "query"
	MethodStatus         = "status"
	MethodPing           = "ping"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Application error codes.
const (
	ErrCodeNotFound = -32001
	ErrCodeConflict = -32002
)

// Request represents a JSON-RPC 2.0 request. Requests are newline-delimited
// JSON objects; several may be sent on one connection.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      string          `json:"id"`
}

// Response represents a JSON-RPC 2.0 response. Success and failure share
// this shape; exactly one of Result and Error is set.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error is the structured error of a failed request.
type Error struct {
	Code int `json:"code"`
	// Kind is one of ValidationError, NotFoundError, ConflictError,
	// InternalError.
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// ErrorCode is the service error code, e.g. ERR_201_INDEX_NOT_FOUND.
	ErrorCode  string `json:"error_code,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse converts err into an error response.
func NewErrorResponse(id string, err error) Response {
	return Response{
		JSONRPC: "2.0",
		Error:   errorFrom(err),
		ID:      id,
	}
}

func errorFrom(err error) *Error {
	kind := serrors.KindOf(err)
	code := serrors.GetCode(err)

	rpc := ErrCodeInternalError
	switch {
	case code == serrors.ErrCodeUnknownOperation:
		rpc = ErrCodeMethodNotFound
	case code == serrors.ErrCodeMalformedRequest:
		rpc = ErrCodeParseError
	case kind == serrors.KindValidation:
		rpc = ErrCodeInvalidParams
	case kind == serrors.KindNotFound:
		rpc = ErrCodeNotFound
	case kind == serrors.KindConflict:
		rpc = ErrCodeConflict
	}

	e := &Error{Code: rpc, Kind: string(kind), Message: err.Error(), ErrorCode: code}
	var se *serrors.ServiceError
	if errors.As(err, &se) {
		e.Message = se.Message
		e.Suggestion = se.Suggestion
	}
	return e
}

// ServiceError rebuilds the service error carried by e.
func (e *Error) ServiceError() *serrors.ServiceError {
	code := e.ErrorCode
	if code == "" {
		switch serrors.Kind(e.Kind) {
		case serrors.KindValidation:
			code = serrors.ErrCodeInvalidInput
		case serrors.KindNotFound:
			code = serrors.ErrCodeIndexNotFound
		case serrors.KindConflict:
			code = serrors.ErrCodeIndexExists
		default:
			code = serrors.ErrCodeInternal
		}
	}
	se := serrors.New(code, e.Message, nil)
	if e.Kind != "" {
		se.Kind = serrors.Kind(e.Kind)
	}
	se.Suggestion = e.Suggestion
	return se
}

// IndexParams address a corpus.
type IndexParams struct {
	Name string `json:"name"`
}

// Validate checks that required fields are present.
func (p *IndexParams) Validate() error {
	if p.Name == "" {
		return serrors.MissingField("name")
	}
	return nil
}

// DocumentParams address a document. Text is required by add_document only.
type DocumentParams struct {
	Name  string `json:"name"`
	DocID string `json:"doc_id"`
	Text  string `json:"text,omitempty"`
}

// Validate checks the fields every document operation needs.
func (p *DocumentParams) Validate() error {
	if p.Name == "" {
		return serrors.MissingField("name")
	}
	if p.DocID == "" {
		return serrors.MissingField("doc_id")
	}
	return nil
}

// QueryParams are the parameters of the query method.
type QueryParams struct {
	Name      string `json:"name"`
	QueryText string `json:"query_text"`
	// TopK defaults to the configured value when zero.
	TopK int `json:"top_k,omitempty"`
}

// Validate checks that required fields are present.
func (p *QueryParams) Validate() error {
	if p.Name == "" {
		return serrors.MissingField("name")
	}
	if p.QueryText == "" {
		return serrors.MissingField("query_text")
	}
	if p.TopK < 0 {
		return serrors.ValidationError("top_k must not be negative")
	}
	return nil
}

// OKResult acknowledges a mutation.
type OKResult struct {
	Status string `json:"status"`
	Name   string `json:"name,omitempty"`
	DocID  string `json:"doc_id,omitempty"`
}

func okResult(name, docID string) OKResult {
	return OKResult{Status: "ok", Name: name, DocID: docID}
}

// IndexesResult lists corpora.
type IndexesResult struct {
	Indexes []string `json:"indexes"`
}

// DocumentsResult lists the document ids of one corpus.
type DocumentsResult struct {
	Name   string   `json:"name"`
	DocIDs []string `json:"doc_ids"`
}

// QueryResult carries ranked results. Text is the rendered form, which is
// the no-results sentinel for an empty corpus.
type QueryResult struct {
	Name    string         `json:"name"`
	Results []index.Result `json:"results"`
	Message string         `json:"message,omitempty"`
	Text    string         `json:"text"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
	Workers int    `json:"workers"`
	index.Status
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
