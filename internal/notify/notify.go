// Package notify delivers account messages such as password reset codes.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single delivery command.
const DefaultTimeout = 10 * time.Second

// Message kinds.
const (
	KindResetCode = "reset_code"
)

// Message is a single notification to one recipient.
type Message struct {
	Kind    string            `json:"kind"`
	To      string            `json:"to"`
	Subject string            `json:"subject"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data,omitempty"`
}

// Notifier sends messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Response is what a delivery command writes to stdout.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CommandNotifier hands each message to an external program (a mailer
// script, an SMS gateway client) as JSON on stdin.
type CommandNotifier struct {
	command string
	args    []string
	timeout time.Duration
}

// NewCommandNotifier creates a CommandNotifier. A non-positive timeout uses DefaultTimeout.
func NewCommandNotifier(command string, args []string, timeout time.Duration) *CommandNotifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommandNotifier{
		command: command,
		args:    args,
		timeout: timeout,
	}
}

// Notify runs the command with msg on stdin and parses its Response.
func (n *CommandNotifier) Notify(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	cmd := exec.CommandContext(ctx, n.command, n.args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("notify command timed out after %s", n.timeout)
	}

	if err != nil {
		if s := stderr.String(); s != "" {
			return fmt.Errorf("notify command failed: %w, stderr: %s", err, s)
		}
		return fmt.Errorf("notify command failed: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return fmt.Errorf("failed to parse notify response: %w, stdout: %s", err, stdout.String())
	}
	if !resp.Success {
		if resp.Error == "" {
			resp.Error = "unspecified error"
		}
		return fmt.Errorf("notify command reported failure: %s", resp.Error)
	}

	logrus.WithFields(logrus.Fields{
		"kind": msg.Kind,
		"to":   msg.To,
	}).Debug("notification delivered")

	return nil
}

// LogNotifier writes messages to the log. It is used when no delivery
// command is configured, which makes reset codes visible to the operator.
type LogNotifier struct {
	Logger logrus.FieldLogger
}

// Notify logs msg at info level.
func (n LogNotifier) Notify(_ context.Context, msg Message) error {
	logger := n.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	fields := logrus.Fields{
		"kind": msg.Kind,
		"to":   msg.To,
	}
	for k, v := range msg.Data {
		fields[k] = v
	}
	logger.WithFields(fields).Info(msg.Subject)
	return nil
}
