package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	serrors "github.com/Aman-CERP/semsearch/internal/errors"
)

// DefaultIdleTimeout closes connections that send nothing for this long.
const DefaultIdleTimeout = 30 * time.Second

// ResponseWriteTimeout bounds writing one response to a client.
const ResponseWriteTimeout = 10 * time.Second

// maxRequestSize bounds one request line.
const maxRequestSize = 16 << 20

// Server listens on a Unix socket and serves newline-delimited JSON-RPC
// requests. A connection may carry any number of requests; at most
// `workers` requests run at once across all connections, so the default of
// one keeps processing strictly sequential.
type Server struct {
	socketPath  string
	dispatcher  *Dispatcher
	sem         *semaphore.Weighted
	idleTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for socketPath. workers < 1 is treated as 1.
func NewServer(socketPath string, dispatcher *Dispatcher, workers int) (*Server, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("socket path cannot be empty")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if workers < 1 {
		workers = 1
	}
	return &Server{
		socketPath:  socketPath,
		dispatcher:  dispatcher,
		sem:         semaphore.NewWeighted(int64(workers)),
		idleTimeout: DefaultIdleTimeout,
	}, nil
}

// SetIdleTimeout changes the per-connection idle timeout.
func (s *Server) SetIdleTimeout(d time.Duration) {
	if d > 0 {
		s.idleTimeout = d
	}
}

// ListenAndServe serves until ctx is cancelled. Only a listener failure
// ends it early; failing requests never do.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// A socket left by a crashed daemon would make Listen fail.
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		slog.Warn("failed to restrict socket permissions", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("server listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	var acceptErr error
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isShutdown() {
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				slog.Warn("accept timeout", slog.String("error", err.Error()))
				continue
			}
			acceptErr = fmt.Errorf("accept: %w", err)
			break
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	if acceptErr != nil {
		return acceptErr
	}
	return ctx.Err()
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// handleConnection serves requests from conn until EOF, idle timeout,
// shutdown or an undecodable line.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	// Shutdown unblocks a pending read; a request in flight still gets
	// its response.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	reader := bufio.NewReaderSize(conn, 64*1024)
	encoder := json.NewEncoder(conn)

	// The idle timeout bounds only the wait for the next request. A slow
	// handler must not eat into the time allowed to write its response.
	respond := func(resp Response) error {
		if err := conn.SetWriteDeadline(time.Now().Add(ResponseWriteTimeout)); err != nil {
			slog.Warn("failed to set write deadline", slog.String("error", err.Error()))
		}
		return encoder.Encode(resp)
	}

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			slog.Warn("failed to set read deadline", slog.String("error", err.Error()))
		}
		if ctx.Err() != nil {
			return
		}

		line, err := readLine(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.isShutdown() {
				slog.Debug("connection closed", slog.String("error", err.Error()))
			}
			if errors.Is(err, errLineTooLong) {
				_ = respond(NewErrorResponse("", serrors.New(serrors.ErrCodeMalformedRequest, "request too large", err)))
			}
			return
		}
		if len(line) == 0 {
			continue
		}

		if err := respond(s.serve(ctx, line)); err != nil {
			slog.Debug("failed to write response", slog.String("error", err.Error()))
			return
		}
	}
}

// serve runs one request under the worker semaphore.
func (s *Server) serve(ctx context.Context, line []byte) Response {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return NewErrorResponse("", serrors.InternalError("server is shutting down", err))
	}
	defer s.sem.Release(1)
	// An accepted request runs to completion even if shutdown begins.
	return s.dispatcher.DispatchRaw(context.WithoutCancel(ctx), line)
}

var errLineTooLong = errors.New("request line too long")

// readLine returns the next newline-terminated line without the newline.
// A final line without newline is returned with a nil error.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return line, nil
			}
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > maxRequestSize {
			return nil, errLineTooLong
		}
		if !isPrefix {
			return line, nil
		}
	}
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
