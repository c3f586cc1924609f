package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

var (
	otpTemplate = template.Must(template.New("otp").Parse(`<p>Hello {{.Name}},</p>
<p>{{.Intro}}</p>
<p style="font-size:24px;font-weight:bold;letter-spacing:4px">{{.Code}}</p>
<p>The code expires in {{.Minutes}} minutes. If you did not ask for it, ignore this email.</p>
<p>Fintrack</p>`))

	reportTemplate = template.Must(template.New("report").Parse(`<p>Hello {{.Name}},</p>
<p>Your Fintrack report is attached.</p>
<p>Fintrack</p>`))
)

// OTPMessage builds the email carrying a one-time code.
func OTPMessage(to, name, code, purpose string, minutes int) (Message, error) {
	intro := "Use this code to verify your email address:"
	subject := "Verify your Fintrack account"
	if purpose == "password" {
		intro = "Use this code to reset your password:"
		subject = "Reset your Fintrack password"
	}
	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, map[string]any{
		"Name":    displayName(name),
		"Intro":   intro,
		"Code":    code,
		"Minutes": minutes,
	})
	if err != nil {
		return Message{}, fmt.Errorf("render otp email: %w", err)
	}
	return Message{To: to, Subject: subject, HTML: buf.String()}, nil
}

// ReportMessage builds the email carrying an exported report.
func ReportMessage(to, name string, attachment Attachment) (Message, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, map[string]any{"Name": displayName(name)}); err != nil {
		return Message{}, fmt.Errorf("render report email: %w", err)
	}
	return Message{
		To:          to,
		Subject:     "Your Fintrack report",
		HTML:        buf.String(),
		Attachments: []Attachment{attachment},
	}, nil
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
