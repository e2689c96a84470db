package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBuildNotificationScript(t *testing.T) {
	got := buildNotificationScript(`Reset "code"`, `a\b`)
	want := `display notification "a\\b" with title "Reset \"code\""`
	if got != want {
		t.Errorf("buildNotificationScript() = %s, want %s", got, want)
	}
}

func TestNotificationText(t *testing.T) {
	msg := Message{To: "asha@example.com", Body: "Your code is 123456", Data: map[string]string{"code": "123456"}}
	if got := notificationText(msg); got != "Code for asha@example.com: 123456" {
		t.Errorf("notificationText() = %q", got)
	}

	msg.Data = nil
	if got := notificationText(msg); got != msg.Body {
		t.Errorf("notificationText() without code = %q, want body", got)
	}
}

func TestAppendToMailbox(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, to := range []string{"a@example.com", "b@example.com"} {
		if err := appendToMailbox(path, Message{Kind: "reset_code", To: to}, at); err != nil {
			t.Fatalf("appendToMailbox() error = %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var got []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e mailboxEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line %q: %v", scanner.Text(), err)
		}
		if !e.Time.Equal(at) {
			t.Errorf("time = %v, want %v", e.Time, at)
		}
		got = append(got, e.Message.To)
	}
	if len(got) != 2 || got[0] != "a@example.com" || got[1] != "b@example.com" {
		t.Errorf("recipients = %v", got)
	}
}
