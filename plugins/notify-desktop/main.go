// Package main is a signspeak delivery command. It reads one notify message
// as JSON on stdin and either shows it as a desktop notification (osascript
// on macOS, notify-send elsewhere) or, with -mailbox, appends it to a file as
// a JSON line.
//
//	notify:
//	  command: /usr/local/bin/notify-desktop
//	  args: ["-mailbox", "/var/lib/signspeak/outbox.jsonl"]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Message mirrors notify.Message.
type Message struct {
	Kind    string            `json:"kind"`
	To      string            `json:"to"`
	Subject string            `json:"subject"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data,omitempty"`
}

// Response is read back by the signspeak server.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type mailboxEntry struct {
	Time    time.Time `json:"time"`
	Message Message   `json:"message"`
}

func main() {
	mailbox := flag.String("mailbox", "", "Append messages to this file instead of showing them")
	flag.Parse()

	var msg Message
	if err := json.NewDecoder(os.Stdin).Decode(&msg); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode message: %v", err))
		return
	}
	if msg.To == "" {
		writeErrorResponse("message has no recipient")
		return
	}

	var err error
	if *mailbox != "" {
		err = appendToMailbox(*mailbox, msg, time.Now())
	} else {
		err = showNotification(msg)
	}
	if err != nil {
		writeErrorResponse(fmt.Sprintf("delivery to %s failed: %v", msg.To, err))
		return
	}

	writeSuccessResponse()
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}

func appendToMailbox(path string, msg Message, at time.Time) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(mailboxEntry{Time: at.UTC(), Message: msg}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func showNotification(msg Message) error {
	title := msg.Subject
	if title == "" {
		title = "signspeak"
	}
	text := notificationText(msg)

	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		cmd = exec.Command("osascript", "-e", buildNotificationScript(title, text))
	} else {
		cmd = exec.Command("notify-send", title, text)
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func notificationText(msg Message) string {
	if code := msg.Data["code"]; code != "" {
		return fmt.Sprintf("Code for %s: %s", msg.To, code)
	}
	return msg.Body
}

// buildNotificationScript returns an AppleScript "display notification" line
// with both strings quoted for AppleScript.
func buildNotificationScript(title, text string) string {
	return fmt.Sprintf("display notification %s with title %s", appleScriptQuote(text), appleScriptQuote(title))
}

func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
