package helpers

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"

	"github.com/oksasatya/ngo-backoffice/pkg/mailer"
	mailtpl "github.com/oksasatya/ngo-backoffice/pkg/mailer/templates"
)

func TestRouteToUniversal(t *testing.T) {
	job := mailer.EmailJob{To: "a@x.com", Template: mailtpl.AccountCreated}
	RouteToUniversal(&job)
	EnsureRecipientAndEmail(&job)

	assert.Equal(t, mailtpl.Universal, job.Template)
	assert.Equal(t, mailtpl.AccountCreated, job.Data["Type"])
	assert.Equal(t, "a@x.com", job.Data["RecipientEmail"])
	assert.Equal(t, "Your admin account is ready", SubjectForUniversal(job.Data))
}

func TestRouteToUniversalKeepsNamedTemplates(t *testing.T) {
	job := mailer.EmailJob{To: "a@x.com", Template: mailtpl.RegisterOTP}
	RouteToUniversal(&job)
	assert.Equal(t, mailtpl.RegisterOTP, job.Template)
}

type fixedGeo struct{ tz string }

func (f fixedGeo) Lookup(ctx context.Context, ip string) (mailtpl.Geo, error) {
	return mailtpl.Geo{Timezone: f.tz}, nil
}

func TestLocalizeTimes(t *testing.T) {
	at := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	data := map[string]any{"IP": "1.2.3.4", "TimeAt": at.Format(time.RFC3339)}

	LocalizeTimesIfPossible(context.Background(), fixedGeo{tz: "Africa/Lagos"}, data)
	assert.Equal(t, "15 March 2024, 11:30 WAT", data["Time"])
}

func TestLocalizeTimesWithoutIP(t *testing.T) {
	data := map[string]any{"Time": "unchanged"}
	LocalizeTimesIfPossible(context.Background(), fixedGeo{tz: "Africa/Lagos"}, data)
	assert.Equal(t, "unchanged", data["Time"])
}
