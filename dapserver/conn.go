package dapserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-dap"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Conn is the transport a Server reads requests from and writes
// responses/events to. NewConn wraps a pair of streams (typically an
// IDE's stdout/stdin piped over the DAP base protocol) into one.
type Conn interface {
	SendMsg(m dap.Message) error
	RecvMsg(ctx context.Context) (dap.Message, error)
	io.Closer
}

type conn struct {
	recvCh <-chan dap.Message
	sendCh chan<- dap.Message

	ctx    context.Context
	cancel context.CancelCauseFunc

	eg   *errgroup.Group
	once sync.Once
}

func NewConn(rd io.Reader, wr io.Writer) Conn {
	recvCh := make(chan dap.Message, 100)
	sendCh := make(chan dap.Message, 100)
	errCh := make(chan error, 1)

	// The IDE's stdin is closed by the OS, not by us, so this goroutine
	// outlives Close in the common case; that's fine, nothing waits on
	// it past process exit.
	go func() {
		defer close(errCh)
		defer close(recvCh)

		br := bufio.NewReader(rd)
		for {
			m, err := readMessage(br)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					errCh <- err
				}
				return
			}
			recvCh <- m
		}
	}()

	eg, _ := errgroup.WithContext(context.Background())
	eg.Go(func() error {
		for m := range sendCh {
			if err := dap.WriteProtocolMessage(wr, m); err != nil {
				return err
			}
		}
		return nil
	})

	ctx, cancel := context.WithCancelCause(context.Background())
	return &conn{
		recvCh: recvCh,
		sendCh: sendCh,
		ctx:    ctx,
		cancel: cancel,
		eg:     eg,
	}
}

// readMessage reads one DAP base-protocol frame and decodes it. Frames
// whose command is in customCommands decode into a CustomRequest
// instead of going through go-dap's decoder, which only recognizes the
// standard protocol's fixed command set and errors on anything else.
func readMessage(r *bufio.Reader) (dap.Message, error) {
	header, body, err := readFrame(r)
	if err != nil {
		return nil, err
	}

	var probe struct {
		Type    string `json:"type"`
		Command string `json:"command"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, err
	}

	if probe.Type == "request" && customCommands[probe.Command] {
		var req CustomRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	framed := append(append([]byte{}, header...), body...)
	return dap.ReadProtocolMessage(bufio.NewReader(bytes.NewReader(framed)))
}

// readFrame reads one Content-Length-delimited frame, returning both the
// raw header bytes (so a non-custom frame can be replayed through
// go-dap's own reader unchanged) and the decoded body.
func readFrame(r *bufio.Reader) (header, body []byte, err error) {
	var buf bytes.Buffer
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, nil, err
		}
		buf.WriteString(line)

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		name, value, ok := strings.Cut(trimmed, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, nil, errors.Wrap(err, "dap: bad Content-Length header")
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, nil, errors.New("dap: missing Content-Length header")
	}

	body = make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), body, nil
}

func (c *conn) SendMsg(m dap.Message) error {
	select {
	case c.sendCh <- m:
		return nil
	default:
		return errors.New("send channel full")
	}
}

func (c *conn) RecvMsg(ctx context.Context) (dap.Message, error) {
	select {
	case m, ok := <-c.recvCh:
		if !ok {
			return nil, io.EOF
		}
		return m, nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

func (c *conn) Close() error {
	c.cancel(context.Canceled)
	c.once.Do(func() {
		close(c.sendCh)
	})
	return c.eg.Wait()
}
