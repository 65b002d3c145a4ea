package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// StdoutConfig is the per-channel JSON config for the stdout channel.
type StdoutConfig struct {
	// Separator is printed after each message. Defaults to a blank line.
	Separator string `json:"separator,omitempty"`
}

// StdoutFactory returns a ChannelFactory that prints notifications to
// standard output. Useful for dry runs and local testing.
func StdoutFactory() ChannelFactory {
	return func(name string, config json.RawMessage) (Channel, error) {
		var cfg StdoutConfig
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, fmt.Errorf("stdout: parse config: %w", err)
			}
		}
		return NewWriterChannel(name, os.Stdout, cfg), nil
	}
}

// NewWriterChannel returns a Channel that writes each message to w.
func NewWriterChannel(name string, w io.Writer, cfg StdoutConfig) Channel {
	return &writerChannel{channelState: newChannelState(name, "stdout"), w: w, cfg: cfg}
}

type writerChannel struct {
	channelState
	w   io.Writer
	cfg StdoutConfig
}

func (c *writerChannel) Recipients() []string { return []string{"stdout"} }

func (c *writerChannel) Send(ctx context.Context, msg Message) error {
	if err := c.begin(); err != nil {
		return err
	}
	sep := c.cfg.Separator
	if sep == "" {
		sep = "\n"
	}
	var sb strings.Builder
	sb.WriteString(msg.Text)
	if !strings.HasSuffix(msg.Text, "\n") {
		sb.WriteByte('\n')
	}
	sb.WriteString(sep)
	if !strings.HasSuffix(sep, "\n") {
		sb.WriteByte('\n')
	}

	c.mu.Lock()
	_, err := io.WriteString(c.w, sb.String())
	c.mu.Unlock()
	return c.record(err)
}
