package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	serrors "github.com/Aman-CERP/semsearch/internal/errors"
	"github.com/Aman-CERP/semsearch/internal/index"
	"github.com/Aman-CERP/semsearch/pkg/version"
)

// Backend executes corpus operations. *index.Service implements it.
type Backend interface {
	CreateIndex(ctx context.Context, name string) error
	DeleteIndex(ctx context.Context, name string) error
	ListIndexes(ctx context.Context) ([]string, error)
	AddDocument(ctx context.Context, name, id, text string) error
	RemoveDocument(ctx context.Context, name, id string) error
	ListDocuments(ctx context.Context, name string) ([]string, error)
	Query(ctx context.Context, name, text string, topK int) (*index.QueryResponse, error)
	Status(ctx context.Context) (*index.Status, error)
}

var _ Backend = (*index.Service)(nil)

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Dispatcher maps a request to its operation and always produces a
// response: handler errors and panics become structured errors, and
// nothing a request does can stop the serving loop.
type Dispatcher struct {
	backend  Backend
	handlers map[string]handlerFunc
	started  time.Time
	workers  int
}

// NewDispatcher creates a dispatcher over backend. workers is reported by
// the status method.
func NewDispatcher(backend Backend, workers int) *Dispatcher {
	d := &Dispatcher{backend: backend, started: time.Now(), workers: workers}
	d.handlers = map[string]handlerFunc{
		MethodCreateIndex:    d.createIndex,
		MethodDeleteIndex:    d.deleteIndex,
		MethodListIndexes:    d.listIndexes,
		MethodAddDocument:    d.addDocument,
		MethodRemoveDocument: d.removeDocument,
		MethodListDocuments:  d.listDocuments,
		MethodQuery:          d.query,
		MethodStatus:         d.status,
		MethodPing:           d.ping,
	}
	return d
}

// Methods returns the supported method names.
func (d *Dispatcher) Methods() []string {
	return []string{
		MethodCreateIndex, MethodDeleteIndex, MethodListIndexes,
		MethodAddDocument, MethodRemoveDocument, MethodListDocuments,
		MethodQuery, MethodStatus, MethodPing,
	}
}

// Dispatch executes req and returns its response.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("request handler panicked",
				slog.String("method", req.Method),
				slog.String("id", req.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			resp = NewErrorResponse(req.ID, serrors.InternalError(fmt.Sprintf("%s failed unexpectedly", req.Method), nil))
		}
		attrs := []any{
			slog.String("method", req.Method),
			slog.String("id", req.ID),
			slog.Duration("duration", time.Since(start)),
		}
		if resp.Error != nil {
			attrs = append(attrs, slog.String("error_kind", resp.Error.Kind), slog.String("error", resp.Error.Message))
			slog.Info("request failed", attrs...)
			return
		}
		slog.Debug("request handled", attrs...)
	}()

	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, serrors.Newf(serrors.ErrCodeMalformedRequest, "unsupported jsonrpc version %q", req.JSONRPC))
	}
	if req.Method == "" {
		return NewErrorResponse(req.ID, serrors.MissingField("method"))
	}

	h, found := d.handlers[req.Method]
	if !found {
		return NewErrorResponse(req.ID, serrors.Newf(serrors.ErrCodeUnknownOperation, "unknown operation: %s", req.Method).
			WithSuggestion("Valid operations: create_index, delete_index, list_indexes, add_document, remove_document, list_documents, query"))
	}

	result, err := h(ctx, req.Params)
	if err != nil {
		return NewErrorResponse(req.ID, err)
	}
	return NewSuccessResponse(req.ID, result)
}

// DispatchRaw decodes one encoded request and dispatches it. Undecodable
// input yields an InternalError response with an empty id.
func (d *Dispatcher) DispatchRaw(ctx context.Context, data []byte) Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return NewErrorResponse("", serrors.New(serrors.ErrCodeMalformedRequest, "failed to parse request", err))
	}
	return d.Dispatch(ctx, req)
}

// decodeParams unmarshals params into v and validates it. Unknown fields
// are rejected.
func decodeParams[T any, P interface {
	*T
	Validate() error
}](raw json.RawMessage) (*T, error) {
	p := new(T)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(p); err != nil {
			return nil, serrors.New(serrors.ErrCodeInvalidInput, fmt.Sprintf("invalid params: %v", err), err)
		}
	}
	if err := P(p).Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Dispatcher) createIndex(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[IndexParams](raw)
	if err != nil {
		return nil, err
	}
	if err := d.backend.CreateIndex(ctx, p.Name); err != nil {
		return nil, err
	}
	return okResult(p.Name, ""), nil
}

func (d *Dispatcher) deleteIndex(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[IndexParams](raw)
	if err != nil {
		return nil, err
	}
	if err := d.backend.DeleteIndex(ctx, p.Name); err != nil {
		return nil, err
	}
	return okResult(p.Name, ""), nil
}

func (d *Dispatcher) listIndexes(ctx context.Context, _ json.RawMessage) (any, error) {
	names, err := d.backend.ListIndexes(ctx)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return IndexesResult{Indexes: names}, nil
}

func (d *Dispatcher) addDocument(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[DocumentParams](raw)
	if err != nil {
		return nil, err
	}
	if p.Text == "" {
		return nil, serrors.MissingField("text")
	}
	if err := d.backend.AddDocument(ctx, p.Name, p.DocID, p.Text); err != nil {
		return nil, err
	}
	return okResult(p.Name, p.DocID), nil
}

func (d *Dispatcher) removeDocument(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[DocumentParams](raw)
	if err != nil {
		return nil, err
	}
	if err := d.backend.RemoveDocument(ctx, p.Name, p.DocID); err != nil {
		return nil, err
	}
	return okResult(p.Name, p.DocID), nil
}

func (d *Dispatcher) listDocuments(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[IndexParams](raw)
	if err != nil {
		return nil, err
	}
	ids, err := d.backend.ListDocuments(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return DocumentsResult{Name: p.Name, DocIDs: ids}, nil
}

func (d *Dispatcher) query(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[QueryParams](raw)
	if err != nil {
		return nil, err
	}
	resp, err := d.backend.Query(ctx, p.Name, p.QueryText, p.TopK)
	if err != nil {
		return nil, err
	}
	results := resp.Results
	if results == nil {
		results = []index.Result{}
	}
	return QueryResult{
		Name:    p.Name,
		Results: results,
		Message: resp.Message,
		Text:    index.FormatResults(resp),
	}, nil
}

func (d *Dispatcher) status(ctx context.Context, _ json.RawMessage) (any, error) {
	st, err := d.backend.Status(ctx)
	if err != nil {
		return nil, err
	}
	return StatusResult{
		Running: true,
		PID:     os.Getpid(),
		Uptime:  time.Since(d.started).Round(time.Second).String(),
		Version: version.Version,
		Workers: d.workers,
		Status:  *st,
	}, nil
}

func (d *Dispatcher) ping(_ context.Context, _ json.RawMessage) (any, error) {
	return PingResult{Pong: true}, nil
}
