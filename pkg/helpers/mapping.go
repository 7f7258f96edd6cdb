package helpers

import (
	"fmt"
	"strings"

	"github.com/oksasatya/ngo-backoffice/pkg/mailer"
	mailtpl "github.com/oksasatya/ngo-backoffice/pkg/mailer/templates"
)

func SubjectForUniversal(data map[string]any) string {
	switch strings.ToLower(fmt.Sprintf("%v", data["Type"])) {
	case mailtpl.RegisterOTP:
		return "Your admin registration code"
	case mailtpl.AccountCreated:
		return "Your admin account is ready"
	case mailtpl.LoginNotification:
		return "New sign-in to your admin account"
	default:
		return "Notification"
	}
}

func EnsureRecipientAndEmail(job *mailer.EmailJob) {
	if job.Data == nil {
		job.Data = map[string]any{}
	}
	if v, ok := job.Data["Email"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["Email"] = job.To
	}
	if v, ok := job.Data["RecipientEmail"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["RecipientEmail"] = job.To
	}
}

// RouteToUniversal folds the type-named templates without their own files into
// the universal layout.
func RouteToUniversal(job *mailer.EmailJob) {
	switch strings.ToLower(job.Template) {
	case mailtpl.AccountCreated, mailtpl.LoginNotification:
		if job.Data == nil {
			job.Data = map[string]any{}
		}
		if s := fmt.Sprintf("%v", job.Data["Type"]); job.Data["Type"] == nil || s == "" {
			job.Data["Type"] = job.Template
		}
		job.Template = mailtpl.Universal
	}
}
