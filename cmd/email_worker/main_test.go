package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/ngo-backoffice/config"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
	"github.com/oksasatya/ngo-backoffice/pkg/mailer"
	mailtpl "github.com/oksasatya/ngo-backoffice/pkg/mailer/templates"
)

type fixedGeo struct{}

func (fixedGeo) Lookup(ctx context.Context, ip string) (mailtpl.Geo, error) {
	return mailtpl.Geo{City: "Jakarta", Country: "Indonesia", Timezone: "Asia/Jakarta"}, nil
}

func newWorker() *worker {
	return &worker{resolver: fixedGeo{}, logger: helpers.NewDiscardLogger()}
}

func TestRenderRegisterOTP(t *testing.T) {
	cfg := &config.Config{AppName: "Hope"}
	job := mailer.EmailJob{To: "a@x.com", Template: mailtpl.RegisterOTP, Data: mailtpl.NewRegisterOTPData(cfg, "a@x.com", "654321", 10*time.Minute)}

	subject, text, html, err := newWorker().render(context.Background(), &job)
	require.NoError(t, err)
	assert.Contains(t, subject, "654321")
	assert.Contains(t, text, "654321")
	assert.Contains(t, html, "654321")
}

func TestRenderRoutesAccountEmailsToUniversal(t *testing.T) {
	cfg := &config.Config{AdminLoginURL: "https://x/admin/login"}
	job := mailer.EmailJob{
		To:       "a@x.com",
		Template: mailtpl.AccountCreated,
		Data:     mailtpl.NewAccountCreatedData(cfg, "a@x.com", "ada", "root", mailtpl.WithIP("203.0.113.9")),
	}

	subject, _, html, err := newWorker().render(context.Background(), &job)
	require.NoError(t, err)
	assert.Equal(t, mailtpl.Universal, job.Template)
	assert.Equal(t, "Your admin account is ready", subject)
	assert.Contains(t, html, "Welcome, ada")
	assert.Equal(t, "a@x.com", job.Data["RecipientEmail"])
}

func TestRenderLiteralJob(t *testing.T) {
	job := mailer.EmailJob{To: "a@x.com", Subject: "hi", Text: "plain", HTML: "<p>rich</p>"}

	subject, text, html, err := newWorker().render(context.Background(), &job)
	require.NoError(t, err)
	assert.Equal(t, "hi", subject)
	assert.Equal(t, "plain", text)
	assert.Equal(t, "<p>rich</p>", html)
}

func TestRenderUnknownTemplateFails(t *testing.T) {
	job := mailer.EmailJob{To: "a@x.com", Template: "missing", Data: map[string]any{}}

	_, _, _, err := newWorker().render(context.Background(), &job)
	assert.Error(t, err)
}
