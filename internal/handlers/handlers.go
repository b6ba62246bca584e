// Package handlers provides the build-time job type registry's concrete
// (intentionally simple) implementations — spec.md §1 calls these "opaque
// user code"; their only contractual surface is Handle(ctx, payload) error.
// Simulated latency for process_video echoes the teacher's
// TypePaymentProcess/TypeEmailConfirmation time.Sleep pattern
// (service/JobWorker.go::processJobInternal).
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ragbendra/distributed-job-queue/internal/model"
)

// Handler executes one job's payload. Implementations must be idempotent —
// the spec's at-least-once delivery contract means Handle may run more than
// once for the same job_id.
type Handler interface {
	Handle(ctx context.Context, payload model.Payload) error
}

// Registry maps a job type to the handler that executes it. Populated once
// at process startup; never mutated at runtime.
type Registry map[model.JobType]Handler

// Resolve looks up the handler for jobType, or (nil, false) if no handler
// is registered — callers treat that as a Poison-adjacent condition per
// spec.md §4.5 step 2 (fail the job without invoking anything).
func (r Registry) Resolve(jobType model.JobType) (Handler, bool) {
	h, ok := r[jobType]
	return h, ok
}

// EmailSender abstracts the outbound transport send_email uses, so tests
// can inject a fake instead of contacting a real provider.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SendEmailPayload is the expected shape of a send_email job's payload.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SendEmailHandler formats and sends an email through a pluggable sender.
type SendEmailHandler struct {
	Sender EmailSender
}

// Handle decodes payload and delegates to Sender.
func (h SendEmailHandler) Handle(ctx context.Context, payload model.Payload) error {
	var p SendEmailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("handlers: send_email: decode payload: %w", err)
	}
	if p.To == "" {
		return fmt.Errorf("handlers: send_email: payload missing \"to\"")
	}
	return h.Sender.Send(ctx, p.To, p.Subject, p.Body)
}

// ProcessVideoPayload is the expected shape of a process_video job's
// payload. DurationSeconds, when present, scales the simulated transcode
// time; it defaults to 2s when zero, matching the teacher's fixed
// 2-second TypePaymentProcess simulation.
type ProcessVideoPayload struct {
	VideoURL        string `json:"video_url"`
	OutputFormat    string `json:"output_format"`
	DurationSeconds int    `json:"duration_seconds"`
}

// ProcessVideoHandler simulates a transcode job. A real implementation
// would shell out to ffmpeg or call a transcoding service; this is
// intentionally a stand-in, per spec.md's "opaque user code" framing.
type ProcessVideoHandler struct {
	Sleep func(time.Duration)
}

// Handle decodes payload and sleeps for the simulated transcode duration.
func (h ProcessVideoHandler) Handle(ctx context.Context, payload model.Payload) error {
	var p ProcessVideoPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("handlers: process_video: decode payload: %w", err)
	}
	if p.VideoURL == "" {
		return fmt.Errorf("handlers: process_video: payload missing \"video_url\"")
	}

	duration := time.Duration(p.DurationSeconds) * time.Second
	if duration <= 0 {
		duration = 2 * time.Second
	}

	if h.Sleep != nil {
		h.Sleep(duration)
		return nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ScrapeWebsitePayload is the expected shape of a scrape_website job's
// payload.
type ScrapeWebsitePayload struct {
	URL      string `json:"url"`
	Selector string `json:"selector"`
}

// ScrapeWebsiteHandler issues a real HTTP GET and parses the response with
// goquery, the scraping stack the pack's tyemirov-utils repo depends on.
type ScrapeWebsiteHandler struct {
	Client *http.Client
}

// Handle fetches payload.URL and runs payload.Selector (default "title")
// against the parsed document, failing the job if the request errors or
// returns a non-2xx status.
func (h ScrapeWebsiteHandler) Handle(ctx context.Context, payload model.Payload) error {
	var p ScrapeWebsitePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("handlers: scrape_website: decode payload: %w", err)
	}
	if p.URL == "" {
		return fmt.Errorf("handlers: scrape_website: payload missing \"url\"")
	}
	selector := p.Selector
	if selector == "" {
		selector = "title"
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fmt.Errorf("handlers: scrape_website: build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("handlers: scrape_website: fetch %s: %w", p.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("handlers: scrape_website: %s returned status %d", p.URL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("handlers: scrape_website: parse html: %w", err)
	}

	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("handlers: scrape_website: selector %q matched nothing on %s", selector, p.URL)
	}
	return nil
}
