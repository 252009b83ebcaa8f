// Package report turns a run log into the nightly status mail and delivers it.
package report

import (
	"bytes"
	"context"
	"strings"
	"time"

	"recarchive/internal/mailaddr"
	"recarchive/internal/runlog"
)

const dateLayout = "Mon, 02 Jan 2006 15:04:05"

// Message is a plain-text mail ready for delivery.
type Message struct {
	From      string
	To        string
	Subject   string
	Date      time.Time
	MessageID string
	Body      string
}

// Input is what Compose needs from a finished run.
type Input struct {
	From  string
	To    string
	RunID string
	Now   time.Time
	Log   string
}

// Failed reports whether the run log carries an error level line.
func (in Input) Failed() bool {
	return runlog.ContainsError(in.Log)
}

// Compose builds the report. The subject says Error when the log holds an
// ERROR or CRITICAL line and Success otherwise.
func Compose(in Input) Message {
	subject := in.From + ": Success processing recordings"
	if in.Failed() {
		subject = in.From + ": Error processing recordings"
	}

	var body strings.Builder
	body.WriteString(in.From + " recordings processed at " + in.Now.Format(dateLayout) + "\r\n")
	if in.RunID != "" {
		body.WriteString("Run: " + in.RunID + "\r\n")
	}
	if in.Log != "" {
		body.WriteString("Logging follows: \r\n")
		body.WriteString(in.Log)
	}

	var msgID string
	if in.RunID != "" {
		domain := mailaddr.Domain(in.From)
		if domain == "" {
			domain = "localhost"
		}
		msgID = "<" + in.RunID + "@" + domain + ">"
	}

	return Message{
		From:      in.From,
		To:        in.To,
		Subject:   subject,
		Date:      in.Now,
		MessageID: msgID,
		Body:      body.String(),
	}
}

// Bytes renders m as an RFC 5322 message with CRLF line endings.
func (m Message) Bytes() []byte {
	var b bytes.Buffer
	header := func(k, v string) {
		if v == "" {
			return
		}
		b.WriteString(k + ": " + stripCRLF(v) + "\r\n")
	}
	header("From", m.From)
	header("To", m.To)
	header("Subject", m.Subject)
	if !m.Date.IsZero() {
		header("Date", m.Date.Format(time.RFC1123Z))
	}
	header("Message-ID", m.MessageID)
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=utf-8")
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(toCRLF(m.Body))
	if !strings.HasSuffix(m.Body, "\n") {
		b.WriteString("\r\n")
	}
	return b.Bytes()
}

// Sender delivers a composed report.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

func stripCRLF(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

func toCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
