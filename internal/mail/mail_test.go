package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/log"
)

func TestOTPMessage(t *testing.T) {
	msg, err := OTPMessage("a@example.com", "Ann <script>", "012345", "password", 10)
	require.NoError(t, err)

	assert.Equal(t, "a@example.com", msg.To)
	assert.Equal(t, "Reset your Fintrack password", msg.Subject)
	assert.Contains(t, msg.HTML, "012345")
	assert.Contains(t, msg.HTML, "10 minutes")
	assert.NotContains(t, msg.HTML, "<script>")

	msg, err = OTPMessage("a@example.com", "", "999999", "verification", 10)
	require.NoError(t, err)
	assert.Equal(t, "Verify your Fintrack account", msg.Subject)
	assert.Contains(t, msg.HTML, "Hello there")
}

func TestReportMessage(t *testing.T) {
	msg, err := ReportMessage("a@example.com", "Ann", Attachment{Name: "Fintrack_Report.csv", Content: []byte("x")})
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "Fintrack_Report.csv", msg.Attachments[0].Name)
}

func TestBuildMessage(t *testing.T) {
	_, err := buildMessage("not an address", Message{To: "a@example.com"})
	assert.Error(t, err)

	m, err := buildMessage("noreply@example.com", Message{
		To:          "a@example.com",
		Subject:     "hi",
		HTML:        "<p>hi</p>",
		Attachments: []Attachment{{Name: "r.csv", Content: []byte("a,b")}},
	})
	require.NoError(t, err)
	assert.Len(t, m.GetAttachments(), 1)
}

func TestNewSMTPSenderValidation(t *testing.T) {
	_, err := NewSMTPSender(Config{From: "a@example.com"}, log.NewNop())
	assert.Error(t, err)

	s, err := NewSMTPSender(Config{Host: "smtp.example.com", From: "a@example.com"}, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 587, s.cfg.Port)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, NewLogSender(log.NewNop()).Send(context.Background(), Message{To: "a@example.com"}))
}
