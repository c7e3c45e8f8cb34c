package daemon

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semsearch/internal/config"
	"github.com/Aman-CERP/semsearch/internal/embed"
	serrors "github.com/Aman-CERP/semsearch/internal/errors"
	"github.com/Aman-CERP/semsearch/internal/index"
	"github.com/Aman-CERP/semsearch/internal/store"
)

func newTestService(t *testing.T) *index.Service {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Storage.Root = t.TempDir()
	st, err := store.New(cfg.Storage.Root, store.BackendFile)
	require.NoError(t, err)
	svc, err := index.NewService(cfg, st, embed.NewStaticEmbedder())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func request(t *testing.T, method string, params any) Request {
	t.Helper()
	req := Request{JSONRPC: "2.0", Method: method, ID: "t-1"}
	if params != nil {
		raw, err := json.Marshal(params)
		require.NoError(t, err)
		req.Params = raw
	}
	return req
}

// panicBackend fails every call by panicking.
type panicBackend struct{ Backend }

func (panicBackend) ListIndexes(context.Context) ([]string, error) { panic("boom") }

func TestDispatcher_Operations(t *testing.T) {
	d := NewDispatcher(newTestService(t), 1)
	ctx := context.Background()

	// Given: a corpus with two documents
	resp := d.Dispatch(ctx, request(t, MethodCreateIndex, IndexParams{Name: "docs"}))
	require.Nil(t, resp.Error)
	assert.Equal(t, "t-1", resp.ID)
	assert.Equal(t, okResult("docs", ""), resp.Result)

	for id, text := range map[string]string{"a": "the cat sat on the mat", "b": "stock markets fell sharply"} {
		resp = d.Dispatch(ctx, request(t, MethodAddDocument, DocumentParams{Name: "docs", DocID: id, Text: text}))
		require.Nil(t, resp.Error, id)
	}

	// When: listing and querying
	resp = d.Dispatch(ctx, request(t, MethodListIndexes, nil))
	require.Nil(t, resp.Error)
	assert.Equal(t, IndexesResult{Indexes: []string{"docs"}}, resp.Result)

	resp = d.Dispatch(ctx, request(t, MethodListDocuments, IndexParams{Name: "docs"}))
	require.Nil(t, resp.Error)
	assert.ElementsMatch(t, []string{"a", "b"}, resp.Result.(DocumentsResult).DocIDs)

	resp = d.Dispatch(ctx, request(t, MethodQuery, QueryParams{Name: "docs", QueryText: "cat on a mat", TopK: 1}))
	require.Nil(t, resp.Error)
	qr := resp.Result.(QueryResult)
	require.Len(t, qr.Results, 1)
	assert.Equal(t, "/corpus/a", qr.Results[0].Source)
	assert.Contains(t, qr.Text, "--- Result 1/1 (Score: ")

	// Then: removal and deletion succeed
	resp = d.Dispatch(ctx, request(t, MethodRemoveDocument, DocumentParams{Name: "docs", DocID: "a"}))
	require.Nil(t, resp.Error)
	resp = d.Dispatch(ctx, request(t, MethodDeleteIndex, IndexParams{Name: "docs"}))
	require.Nil(t, resp.Error)
}

func TestDispatcher_ErrorKinds(t *testing.T) {
	d := NewDispatcher(newTestService(t), 1)
	ctx := context.Background()
	require.Nil(t, d.Dispatch(ctx, request(t, MethodCreateIndex, IndexParams{Name: "docs"})).Error)

	tests := []struct {
		name     string
		req      Request
		wantKind serrors.Kind
		wantRPC  int
	}{
		{"unknown method", request(t, "explode", nil), serrors.KindValidation, ErrCodeMethodNotFound},
		{"missing name", request(t, MethodCreateIndex, IndexParams{}), serrors.KindValidation, ErrCodeInvalidParams},
		{"illegal name", request(t, MethodCreateIndex, IndexParams{Name: "../etc"}), serrors.KindValidation, ErrCodeInvalidParams},
		{"missing text", request(t, MethodAddDocument, DocumentParams{Name: "docs", DocID: "a"}), serrors.KindValidation, ErrCodeInvalidParams},
		{"missing doc id", request(t, MethodRemoveDocument, DocumentParams{Name: "docs"}), serrors.KindValidation, ErrCodeInvalidParams},
		{"missing query", request(t, MethodQuery, QueryParams{Name: "docs"}), serrors.KindValidation, ErrCodeInvalidParams},
		{"unknown field", Request{Method: MethodCreateIndex, Params: json.RawMessage(`{"nme":"x"}`)}, serrors.KindValidation, ErrCodeInvalidParams},
		{"conflict", request(t, MethodCreateIndex, IndexParams{Name: "docs"}), serrors.KindConflict, ErrCodeConflict},
		{"missing index", request(t, MethodDeleteIndex, IndexParams{Name: "ghost"}), serrors.KindNotFound, ErrCodeNotFound},
		{"missing document", request(t, MethodRemoveDocument, DocumentParams{Name: "docs", DocID: "zz"}), serrors.KindNotFound, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := d.Dispatch(ctx, tt.req)
			require.NotNil(t, resp.Error)
			assert.Nil(t, resp.Result)
			assert.Equal(t, string(tt.wantKind), resp.Error.Kind)
			assert.Equal(t, tt.wantRPC, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestDispatcher_EmptyCorpusQueryIsSuccess(t *testing.T) {
	d := NewDispatcher(newTestService(t), 1)

	resp := d.Dispatch(context.Background(), request(t, MethodQuery, QueryParams{Name: "empty_corpus", QueryText: "anything"}))

	require.Nil(t, resp.Error)
	qr := resp.Result.(QueryResult)
	assert.Empty(t, qr.Results)
	assert.NotNil(t, qr.Results)
	assert.Equal(t, index.NoResultsMessage, qr.Text)
	assert.Equal(t, index.NoResultsMessage, qr.Message)
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	d := NewDispatcher(panicBackend{}, 1)

	resp := d.Dispatch(context.Background(), request(t, MethodListIndexes, nil))

	require.NotNil(t, resp.Error)
	assert.Equal(t, string(serrors.KindInternal), resp.Error.Kind)

	// And: the dispatcher keeps working
	resp = d.Dispatch(context.Background(), request(t, MethodPing, nil))
	assert.Nil(t, resp.Error)
}

func TestDispatcher_DispatchRaw_Malformed(t *testing.T) {
	d := NewDispatcher(newTestService(t), 1)

	resp := d.DispatchRaw(context.Background(), []byte(`{"method": "ping"`))

	require.NotNil(t, resp.Error)
	assert.Equal(t, string(serrors.KindInternal), resp.Error.Kind)
	assert.Equal(t, serrors.ErrCodeMalformedRequest, resp.Error.ErrorCode)
	assert.Equal(t, ErrCodeParseError, resp.Error.Code)
}

func TestDispatcher_Status(t *testing.T) {
	d := NewDispatcher(newTestService(t), 4)

	resp := d.Dispatch(context.Background(), request(t, MethodStatus, nil))

	require.Nil(t, resp.Error)
	st := resp.Result.(StatusResult)
	assert.True(t, st.Running)
	assert.Equal(t, 4, st.Workers)
	assert.Equal(t, "static-256", st.Model)
	assert.Equal(t, store.BackendFile, st.Backend)
}

func TestError_ServiceError_RoundTrip(t *testing.T) {
	orig := serrors.IndexNotFound("docs")
	e := errorFrom(orig)

	back := e.ServiceError()

	assert.Equal(t, orig.Code, back.Code)
	assert.Equal(t, serrors.KindNotFound, back.Kind)
	assert.Equal(t, orig.Message, back.Message)
	assert.Equal(t, orig.Suggestion, back.Suggestion)
}
