package notify

import (
	"context"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/torfstack/sideload/internal/logging"
	"github.com/torfstack/sideload/internal/version"
)

const (
	sendgridHost    = "https://api.sendgrid.com"
	subjectMaxRunes = 80
)

type Sendgrid struct {
	apiKey string
	host   string
	from   string
	to     string
}

func NewSendgrid(apiKey, from, to string) *Sendgrid {
	return &Sendgrid{apiKey: apiKey, host: sendgridHost, from: from, to: to}
}

func (s *Sendgrid) Send(ctx context.Context, msg string) bool {
	if s.apiKey == "" {
		logging.Debug("Sendgrid api key not set, skipping message")
		return false
	}
	if msg == "" || s.to == "" || s.from == "" {
		logging.Warnf("Refusing to send e-mail without message, sender or recipient")
		return false
	}

	from := mail.NewEmail(version.AppName, s.from)
	to := mail.NewEmail(s.to, s.to)
	message := mail.NewSingleEmail(from, subject(msg), to, msg, "")

	request := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", s.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		logging.Errorf("Could not send e-mail to %s: %s", s.to, err)
		return false
	}
	if resp.StatusCode >= 300 {
		logging.Errorf("Sendgrid refused e-mail to %s: %d %s", s.to, resp.StatusCode, resp.Body)
		return false
	}

	logging.Debug("E-mail sent", "to", s.to, "status", resp.StatusCode)
	return true
}

func subject(msg string) string {
	line, _, _ := strings.Cut(msg, "\n")
	if r := []rune(line); len(r) > subjectMaxRunes {
		line = string(r[:subjectMaxRunes])
	}
	return line
}
