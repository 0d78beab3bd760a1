package notifier

import (
	"bufio"
	"context"
	"encoding/base64"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

// fakeSMTP accepts one session and records the envelope and message body.
type fakeSMTP struct {
	ln    net.Listener
	from  string
	rcpts []string
	data  string
	done  chan struct{}
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeSMTP{ln: ln, done: make(chan struct{})}
	go f.serve()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeSMTP) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeSMTP) serve() {
	defer close(f.done)
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(s string) { conn.Write([]byte(s + "\r\n")) }
	reply("220 localhost ESMTP")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(cmd)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250 localhost")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			f.from = strings.Trim(cmd[len("MAIL FROM:"):], "<> ")
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			f.rcpts = append(f.rcpts, strings.Trim(cmd[len("RCPT TO:"):], "<> "))
			reply("250 OK")
		case upper == "DATA":
			reply("354 end with .")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			f.data = b.String()
			reply("250 queued")
		case upper == "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 not implemented")
		}
	}
}

func TestSMTPSender_Send(t *testing.T) {
	srv := newFakeSMTP(t)
	s := NewSMTPSender(SMTPConfig{
		Host: "127.0.0.1",
		Port: srv.port(),
		From: "jobsift@example.com",
	}, discardLogger())

	d := sampleDigest(sampleJob("1", "Backend Engineer", "Acme", "be"))
	d.Recipient = "a@example.com, b@example.com"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Send(ctx, d); err != nil {
		t.Fatalf("Send: %v", err)
	}
	<-srv.done

	if srv.from != "jobsift@example.com" {
		t.Errorf("MAIL FROM = %q", srv.from)
	}
	if len(srv.rcpts) != 2 || srv.rcpts[0] != "a@example.com" || srv.rcpts[1] != "b@example.com" {
		t.Errorf("RCPT TO = %v", srv.rcpts)
	}
	if !strings.Contains(srv.data, "Content-Type: text/html") {
		t.Errorf("message missing html content type:\n%s", srv.data)
	}
}

func TestSMTPSender_NoRecipient(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1}, discardLogger())
	if err := s.Send(context.Background(), model.Digest{}); err == nil {
		t.Error("expected error for empty recipient")
	}
}

func TestSMTPSender_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: port, From: "x@example.com"}, discardLogger())
	if err := s.Send(context.Background(), model.Digest{Recipient: "me@example.com"}); err == nil {
		t.Error("expected dial error")
	}
}

func TestBuildMessage(t *testing.T) {
	html := strings.Repeat("<p>hello</p>", 40)
	now := time.Date(2026, 1, 16, 8, 0, 0, 0, time.UTC)
	msg := string(buildMessage("me@example.com", []string{"a@example.com", "b@example.com"}, "jobsift: 2 new strong matches", html, now))

	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	if !ok {
		t.Fatal("message has no header/body separator")
	}
	for _, want := range []string{
		"From: me@example.com",
		"To: a@example.com, b@example.com",
		"Subject: jobsift: 2 new strong matches",
		"Date: Fri, 16 Jan 2026 08:00:00 +0000",
		"Content-Transfer-Encoding: base64",
	} {
		if !strings.Contains(head, want) {
			t.Errorf("header missing %q", want)
		}
	}

	var joined strings.Builder
	for _, line := range strings.Split(strings.TrimRight(body, "\r\n"), "\r\n") {
		if len(line) > 76 {
			t.Errorf("body line longer than 76 chars: %d", len(line))
		}
		joined.WriteString(line)
	}
	decoded, err := base64.StdEncoding.DecodeString(joined.String())
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if string(decoded) != html {
		t.Error("decoded body does not match html")
	}
}

func TestSplitAddresses(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a@example.com", 1},
		{" a@example.com , b@example.com,, ", 2},
	}
	for _, tt := range tests {
		if got := splitAddresses(tt.in); len(got) != tt.want {
			t.Errorf("splitAddresses(%q) = %v, want %d entries", tt.in, got, tt.want)
		}
	}
}
