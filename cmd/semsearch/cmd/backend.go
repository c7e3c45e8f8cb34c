package cmd

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/semsearch/internal/daemon"
	"github.com/Aman-CERP/semsearch/internal/index"
)

// corpusOps is what the CLI needs from either the daemon or a local service.
type corpusOps interface {
	CreateIndex(ctx context.Context, name string) error
	DeleteIndex(ctx context.Context, name string) error
	ListIndexes(ctx context.Context) ([]string, error)
	AddDocument(ctx context.Context, name, id, text string) error
	RemoveDocument(ctx context.Context, name, id string) error
	ListDocuments(ctx context.Context, name string) ([]string, error)
	Query(ctx context.Context, name, text string, topK int) (*index.QueryResponse, error)
}

var _ corpusOps = (*index.Service)(nil)

// clientOps adapts the daemon client to corpusOps.
type clientOps struct {
	*daemon.Client
}

func (c clientOps) Query(ctx context.Context, name, text string, topK int) (*index.QueryResponse, error) {
	res, err := c.Client.Query(ctx, name, text, topK)
	if err != nil {
		return nil, err
	}
	return &index.QueryResponse{Index: res.Name, Results: res.Results, Message: res.Message}, nil
}

// open returns the daemon when one is running, otherwise a service opened
// on the configured storage. The returned func releases it.
func (a *app) open(ctx context.Context) (corpusOps, func(), error) {
	if !a.local {
		client := daemon.NewClient(daemon.FromAppConfig(a.cfg))
		if client.IsRunning() {
			slog.Debug("using daemon")
			return clientOps{client}, func() {}, nil
		}
		slog.Debug("daemon not running, opening storage directly")
	}

	svc, err := index.Open(ctx, a.cfg)
	if err != nil {
		return nil, nil, err
	}
	return svc, func() {
		if err := svc.Close(); err != nil {
			slog.Warn("failed to close index service", slog.String("error", err.Error()))
		}
	}, nil
}
