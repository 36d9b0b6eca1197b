package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/diagnosis/studio-bookings/pkg/config"
)

func TestNew_SelectsTransport(t *testing.T) {
	if _, ok := New(config.EmailConfig{DevMode: true, MailerSendKey: "k"}).(*DevMailer); !ok {
		t.Fatal("dev mode must win")
	}
	if _, ok := New(config.EmailConfig{MailerSendKey: "k", FromEmail: "a@b.co"}).(*MailerSend); !ok {
		t.Fatal("expected MailerSend when key set")
	}
	if _, ok := New(config.EmailConfig{SMTPHost: "localhost", SMTPPort: 1025}).(*SMTPMailer); !ok {
		t.Fatal("expected SMTP fallback")
	}
}

func TestDevMailer_RecordsMessages(t *testing.T) {
	d := NewDevMailer()
	id, err := d.Send(context.Background(), Message{ToEmail: "alice@example.com", Subject: "Hi"})
	if err != nil || !strings.HasPrefix(id, "dev-") {
		t.Fatalf("unexpected result %q %v", id, err)
	}
	if got := d.Sent(); len(got) != 1 || got[0].ToEmail != "alice@example.com" {
		t.Fatalf("unexpected sent list %+v", got)
	}
}

func TestMailerSend_DisabledWithoutKey(t *testing.T) {
	m := NewMailerSend("", "Studio", "noreply@studio.local")
	if _, err := m.Send(context.Background(), Message{ToEmail: "a@example.com"}); err == nil {
		t.Fatal("expected disabled error")
	}
}

func TestSMTPMailer_BuildMIME(t *testing.T) {
	s := NewSMTPMailer("mail.local", 1025, "noreply@studio.local", "", "", false)
	body := string(s.buildMIME("alice@example.com", "abc-def", Message{Subject: "Booked", Text: "plain", HTML: "<p>html</p>"}))

	for _, want := range []string{"To: alice@example.com", "Subject: Booked", "boundary=alt-abcdef", "plain", "<p>html</p>"} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in MIME body:\n%s", want, body)
		}
	}
}

func TestSMTPMailer_RejectsEmptyRecipient(t *testing.T) {
	s := NewSMTPMailer("mail.local", 1025, "noreply@studio.local", "", "", false)
	if _, err := s.Send(context.Background(), Message{ToEmail: "  "}); err == nil {
		t.Fatal("expected error")
	}
}
