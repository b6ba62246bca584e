package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ragbendra/distributed-job-queue/internal/model"
)

type fakeSender struct {
	to, subject, body string
	err               error
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	f.to, f.subject, f.body = to, subject, body
	return f.err
}

func TestRegistry_ResolveReturnsFalseForUnknownType(t *testing.T) {
	r := Registry{}
	_, ok := r.Resolve(model.TypeSendEmail)
	require.False(t, ok)
}

func TestSendEmailHandler_DelegatesToSender(t *testing.T) {
	sender := &fakeSender{}
	h := SendEmailHandler{Sender: sender}
	payload := model.Payload(`{"to":"a@example.com","subject":"hi","body":"there"}`)

	require.NoError(t, h.Handle(context.Background(), payload))
	require.Equal(t, "a@example.com", sender.to)
	require.Equal(t, "hi", sender.subject)
}

func TestSendEmailHandler_MissingToIsRejected(t *testing.T) {
	h := SendEmailHandler{Sender: &fakeSender{}}
	err := h.Handle(context.Background(), model.Payload(`{"subject":"hi"}`))
	require.Error(t, err)
}

func TestSendEmailHandler_PropagatesSenderError(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	h := SendEmailHandler{Sender: sender}
	err := h.Handle(context.Background(), model.Payload(`{"to":"a@example.com"}`))
	require.ErrorIs(t, err, sender.err)
}

func TestProcessVideoHandler_InvokesInjectedSleepWithDefaultDuration(t *testing.T) {
	var got time.Duration
	h := ProcessVideoHandler{Sleep: func(d time.Duration) { got = d }}

	err := h.Handle(context.Background(), model.Payload(`{"video_url":"s3://bucket/in.mp4"}`))
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, got)
}

func TestProcessVideoHandler_RespectsExplicitDuration(t *testing.T) {
	var got time.Duration
	h := ProcessVideoHandler{Sleep: func(d time.Duration) { got = d }}

	payload := model.Payload(`{"video_url":"s3://bucket/in.mp4","duration_seconds":5}`)
	require.NoError(t, h.Handle(context.Background(), payload))
	require.Equal(t, 5*time.Second, got)
}

func TestProcessVideoHandler_MissingVideoURLIsRejected(t *testing.T) {
	h := ProcessVideoHandler{Sleep: func(time.Duration) {}}
	err := h.Handle(context.Background(), model.Payload(`{}`))
	require.Error(t, err)
}

func TestScrapeWebsiteHandler_FindsDefaultTitleSelector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>hello</title></head></html>`))
	}))
	defer srv.Close()

	h := ScrapeWebsiteHandler{Client: srv.Client()}
	payload := model.Payload(`{"url":"` + srv.URL + `"}`)
	require.NoError(t, h.Handle(context.Background(), payload))
}

func TestScrapeWebsiteHandler_SelectorNotFoundIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>no title tag here</p></body></html>`))
	}))
	defer srv.Close()

	h := ScrapeWebsiteHandler{Client: srv.Client()}
	payload := model.Payload(`{"url":"` + srv.URL + `","selector":"h1.missing"}`)
	err := h.Handle(context.Background(), payload)
	require.Error(t, err)
}

func TestScrapeWebsiteHandler_NonOKStatusIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	h := ScrapeWebsiteHandler{Client: srv.Client()}
	payload := model.Payload(`{"url":"` + srv.URL + `"}`)
	err := h.Handle(context.Background(), payload)
	require.Error(t, err)
}
