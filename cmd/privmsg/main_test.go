package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCLI runs the CLI against a sqlite file shared across calls.
func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(append([]string{"--config", cfgPath}, args...), &stdout, &stderr)
	return strings.TrimSpace(stdout.String()), err
}

func TestCLI(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := filepath.Join(dir, "privmsg.yaml")
	cfg := "store:\n  driver: sqlite\n  path: " + filepath.Join(dir, "privmsg.db") + "\nlog:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	id, err := runCLI(t, cfgPath, "--as", "user:1", "send", "user:2", "Hi", "Hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id == "" {
		t.Fatal("send printed no id")
	}

	out, err := runCLI(t, cfgPath, "--as", "user:2", "unread")
	if err != nil || out != "1" {
		t.Fatalf("unread = %q, %v", out, err)
	}

	out, err = runCLI(t, cfgPath, "--as", "user:2", "inbox")
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "Hi") {
		t.Errorf("inbox missing message:\n%s", out)
	}

	out, err = runCLI(t, cfgPath, "--as", "user:2", "read", id)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(out, "Hello") {
		t.Errorf("read output missing body:\n%s", out)
	}

	out, err = runCLI(t, cfgPath, "--as", "user:2", "unread")
	if err != nil || out != "0" {
		t.Fatalf("unread after read = %q, %v", out, err)
	}

	replyID, err := runCLI(t, cfgPath, "--as", "user:2", "reply", id, "Re: Hi", "Hey")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	out, err = runCLI(t, cfgPath, "--as", "user:1", "replies", id)
	if err != nil || !strings.Contains(out, replyID) {
		t.Fatalf("replies = %q, %v", out, err)
	}

	if _, err := runCLI(t, cfgPath, "--as", "user:2", "delete", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	out, err = runCLI(t, cfgPath, "--as", "user:2", "trash")
	if err != nil || !strings.Contains(out, id) {
		t.Fatalf("trash = %q, %v", out, err)
	}
	if _, err := runCLI(t, cfgPath, "--as", "user:2", "restore", id); err != nil {
		t.Fatalf("restore: %v", err)
	}

	out, err = runCLI(t, cfgPath, "--as", "user:1", "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "INBOX") {
		t.Errorf("stats output:\n%s", out)
	}
}

func TestCLIErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := filepath.Join(dir, "privmsg.yaml")
	if err := os.WriteFile(cfgPath, []byte("store:\n  driver: memory\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"missing principal", []string{"inbox"}},
		{"bad principal", []string{"--as", "nobody", "inbox"}},
		{"unknown command", []string{"--as", "user:1", "archive"}},
		{"wrong arity", []string{"--as", "user:1", "send", "user:2"}},
		{"bad limit", []string{"--as", "user:1", "inbox", "--limit", "zero"}},
		{"negative limit", []string{"--as", "user:1", "inbox", "--limit", "-1"}},
		{"extra args", []string{"--as", "user:1", "inbox", "5"}},
		{"reply arity", []string{"--as", "user:1", "reply", "id", "subject"}},
		{"invalid form", []string{"--as", "user:1", "send", "user:2", " ", "body"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, cfgPath, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCLIListOrder(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := filepath.Join(dir, "privmsg.yaml")
	cfg := "store:\n  driver: sqlite\n  path: " + filepath.Join(dir, "privmsg.db") + "\nlog:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var ids []string
	for _, subject := range []string{"first", "second", "third"} {
		id, err := runCLI(t, cfgPath, "--as", "user:1", "send", "user:2", subject, "b")
		if err != nil {
			t.Fatalf("send %s: %v", subject, err)
		}
		ids = append(ids, id)
	}

	before := func(out, a, b string) bool {
		return strings.Index(out, a) < strings.Index(out, b)
	}

	t.Run("oldest first by default", func(t *testing.T) {
		out, err := runCLI(t, cfgPath, "--as", "user:2", "inbox")
		if err != nil {
			t.Fatalf("inbox: %v", err)
		}
		if !before(out, ids[0], ids[1]) || !before(out, ids[1], ids[2]) {
			t.Errorf("inbox not ascending:\n%s", out)
		}
	})

	t.Run("desc flag", func(t *testing.T) {
		out, err := runCLI(t, cfgPath, "--as", "user:2", "inbox", "--desc")
		if err != nil {
			t.Fatalf("inbox: %v", err)
		}
		if !before(out, ids[2], ids[1]) || !before(out, ids[1], ids[0]) {
			t.Errorf("inbox not descending:\n%s", out)
		}
	})

	t.Run("limit and after", func(t *testing.T) {
		out, err := runCLI(t, cfgPath, "--as", "user:2", "inbox", "-n", "1")
		if err != nil {
			t.Fatalf("inbox: %v", err)
		}
		if !strings.Contains(out, ids[0]) || strings.Contains(out, ids[1]) {
			t.Errorf("limited page:\n%s", out)
		}
		out, err = runCLI(t, cfgPath, "--as", "user:2", "inbox", "--after", ids[0])
		if err != nil {
			t.Fatalf("inbox: %v", err)
		}
		if strings.Contains(out, ids[0]) || !strings.Contains(out, ids[2]) {
			t.Errorf("page after cursor:\n%s", out)
		}
	})

	t.Run("bulk delete", func(t *testing.T) {
		if _, err := runCLI(t, cfgPath, "--as", "user:2", "delete", ids[0], ids[1]); err != nil {
			t.Fatalf("delete: %v", err)
		}
		out, err := runCLI(t, cfgPath, "--as", "user:2", "trash")
		if err != nil {
			t.Fatalf("trash: %v", err)
		}
		if !strings.Contains(out, ids[0]) || !strings.Contains(out, ids[1]) || strings.Contains(out, ids[2]) {
			t.Errorf("trash:\n%s", out)
		}
	})
}
