package mail

import (
	"net/smtp"
	"strings"
	"testing"
)

func TestSendFormatsHeaders(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string

	r := NewRelay("smtp.example.org", 587, "robot@example.org", "hunter2", "Peninsula")
	r.sendFn = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	err := r.Send("Jane Doe", "jane@example.org", "New Peninsula Account j-doe", "welcome\n")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "smtp.example.org:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "robot@example.org" || len(gotTo) != 1 || gotTo[0] != "jane@example.org" {
		t.Errorf("envelope = %q → %q", gotFrom, gotTo)
	}
	for _, want := range []string{
		"From: Peninsula <robot@example.org>\r\n",
		"To: Jane Doe <jane@example.org>\r\n",
		"Subject: New Peninsula Account j-doe\r\n",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q:\n%s", want, gotMsg)
		}
	}
	if !strings.HasSuffix(gotMsg, "\r\n\r\nwelcome\n") {
		t.Errorf("body not separated from headers:\n%s", gotMsg)
	}
}
