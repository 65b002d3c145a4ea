package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	maxResponseBytes   = 64 << 10
)

// channelState tracks the status counters shared by every platform.
type channelState struct {
	name     string
	platform string

	mu     sync.Mutex
	closed bool
	status ChannelStatus
}

func newChannelState(name, platform string) channelState {
	return channelState{
		name:     name,
		platform: platform,
		status:   ChannelStatus{Connected: true, Platform: platform},
	}
}

// begin fails once the channel is closed.
func (s *channelState) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &ErrSendFailed{Channel: s.name, Platform: s.platform, Cause: errors.New("channel closed")}
	}
	return nil
}

// record updates the counters and wraps a failure in ErrSendFailed.
func (s *channelState) record(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.status.Failed++
		s.status.Error = err.Error()
		return &ErrSendFailed{Channel: s.name, Platform: s.platform, Cause: err}
	}
	s.status.Sent++
	s.status.Error = ""
	s.status.LastMessage = time.Now()
	return nil
}

func (s *channelState) Status() ChannelStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *channelState) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.status.Connected = false
	return nil
}

// postJSON POSTs payload as JSON and returns the status code and a
// size-limited body. Transport errors drop the request URL, which may
// carry a token.
func postJSON(ctx context.Context, client *http.Client, endpoint string, payload any, header http.Header) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal payload: %w", err)
	}
	return postBody(ctx, client, endpoint, body, header)
}

func postBody(ctx context.Context, client *http.Client, endpoint string, body []byte, header http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", redact(err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("POST: %w", redact(err))
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
