package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobsift/internal/model"
)

// Ensure SlackSender implements model.DigestSender.
var _ model.DigestSender = (*SlackSender)(nil)

// slackJobsPerMessage keeps each message well under Slack's 50-block limit.
const slackJobsPerMessage = 20

// SlackSender posts digests to a Slack channel via Incoming Webhooks.
type SlackSender struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackSender returns a sender that posts digests to Slack via webhook.
func NewSlackSender(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackSender {
	return &SlackSender{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Send posts the digest as one or more Block Kit messages. Any failed message
// fails the whole send so the jobs stay unseen for the next digest.
func (s *SlackSender) Send(ctx context.Context, d model.Digest) error {
	if len(d.Jobs) == 0 {
		return nil
	}

	for start := 0; start < len(d.Jobs); start += slackJobsPerMessage {
		end := min(start+slackJobsPerMessage, len(d.Jobs))
		payload := buildPayload(d.Subject, d.Jobs[start:end], start == 0)
		if err := s.sendMessage(ctx, payload); err != nil {
			return fmt.Errorf("slack digest (jobs %d-%d): %w", start+1, end, err)
		}
	}

	s.logger.Info("slack digest sent", "jobs", len(d.Jobs))
	return nil
}

func (s *SlackSender) sendMessage(ctx context.Context, payload slackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return err
	}

	if status == http.StatusTooManyRequests {
		secs, _ := strconv.Atoi(retryAfter)
		if secs <= 0 {
			secs = 1
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after_secs", secs)

		select {
		case <-ctx.Done():
			return fmt.Errorf("slack retry cancelled: %w", ctx.Err())
		case <-time.After(time.Duration(secs) * time.Second):
		}

		status, _, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		if status != http.StatusOK {
			return &model.HTTPError{Service: "slack", StatusCode: status, Err: fmt.Errorf("on retry")}
		}
		return nil
	}

	if status != http.StatusOK {
		return &model.HTTPError{Service: "slack", StatusCode: status}
	}
	return nil
}

func (s *SlackSender) post(ctx context.Context, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, resp.Header.Get("Retry-After"), nil
}

// Block Kit payload types.

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url"`
	Style string    `json:"style,omitempty"`
}

func buildPayload(subject string, jobs []model.StoredJob, first bool) slackPayload {
	var blocks []slackBlock
	if first {
		blocks = append(blocks, slackBlock{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: subject},
		})
	}

	for _, j := range jobs {
		var b strings.Builder
		fmt.Fprintf(&b, "*<%s|%s>*\n%s · %s", applyLink(j), escapeMrkdwn(j.Title), escapeMrkdwn(j.Company), escapeMrkdwn(j.Location))
		if j.WorkMode != "" {
			fmt.Fprintf(&b, " · %s", j.WorkMode)
		}
		fmt.Fprintf(&b, " · score *%d*", j.Score)
		if j.Summary != nil {
			fmt.Fprintf(&b, "\n%s", escapeMrkdwn(*j.Summary))
		}

		blocks = append(blocks,
			slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: b.String()}},
			slackBlock{Type: "divider"},
		)
	}

	return slackPayload{Text: subject, Blocks: blocks}
}

// escapeMrkdwn escapes the three characters Slack treats as control sequences.
func escapeMrkdwn(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
