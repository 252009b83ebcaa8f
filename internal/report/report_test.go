package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportTime = time.Date(2026, 10, 16, 2, 0, 5, 0, time.UTC)

func TestComposeSuccess(t *testing.T) {
	msg := Compose(Input{
		From:  "pbx01@mydomain.com",
		To:    "me@mydomain.com",
		RunID: "3f1c",
		Now:   reportTime,
		Log:   "time=\"2026-10-16 02:00:01\" level=INFO msg=\"Recordings processed successfully\"\n",
	})
	assert.Equal(t, "pbx01@mydomain.com: Success processing recordings", msg.Subject)
	assert.True(t, strings.HasPrefix(msg.Body, "pbx01@mydomain.com recordings processed at Fri, 16 Oct 2026 02:00:05\r\n"),
		"unexpected body start %q", msg.Body)
	assert.Contains(t, msg.Body, "Logging follows: \r\n")
	assert.Contains(t, msg.Body, "Recordings processed successfully")
	assert.Equal(t, "<3f1c@mydomain.com>", msg.MessageID)
}

func TestComposeFailure(t *testing.T) {
	for _, line := range []string{
		"level=ERROR msg=\"Could not convert /x/rec2.wav to mp3\"\n",
		"level=CRITICAL msg=\"Error processing directory\"\n",
	} {
		msg := Compose(Input{From: "pbx01@mydomain.com", To: "me@mydomain.com", Now: reportTime, Log: line})
		assert.Equal(t, "pbx01@mydomain.com: Error processing recordings", msg.Subject, "log %q", line)
	}
}

func TestComposeEmptyLog(t *testing.T) {
	msg := Compose(Input{From: "pbx01@mydomain.com", To: "me@mydomain.com", Now: reportTime})
	assert.NotContains(t, msg.Body, "Logging follows", "empty log must not add a logging section")
	assert.True(t, strings.HasSuffix(msg.Subject, "Success processing recordings"), "unexpected subject %q", msg.Subject)
	assert.Empty(t, msg.MessageID, "no message id without a run id")
}

func TestMessageBytes(t *testing.T) {
	msg := Message{
		From:      "pbx01@mydomain.com",
		To:        "me@mydomain.com",
		Subject:   "line one\r\nBcc: evil@example.com",
		Date:      reportTime,
		MessageID: "<1@mydomain.com>",
		Body:      "first\nsecond\r\nthird",
	}
	raw := string(msg.Bytes())
	assert.NotContains(t, raw, "\r\nBcc:", "header injection survived")

	head, body, ok := strings.Cut(raw, "\r\n\r\n")
	require.True(t, ok, "missing header/body separator: %q", raw)
	for _, want := range []string{
		"From: pbx01@mydomain.com",
		"To: me@mydomain.com",
		"Date: Fri, 16 Oct 2026 02:00:05 +0000",
		"Message-ID: <1@mydomain.com>",
		"Content-Type: text/plain; charset=utf-8",
	} {
		assert.Contains(t, head, want)
	}
	assert.Equal(t, "first\r\nsecond\r\nthird\r\n", body)
}
