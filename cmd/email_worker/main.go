package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ngo-backoffice/config"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
	"github.com/oksasatya/ngo-backoffice/pkg/mailer"
	mailtpl "github.com/oksasatya/ngo-backoffice/pkg/mailer/templates"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env)

	if !cfg.MailSendEnabled {
		logger.Info("MAIL_SEND_ENABLED=false; email worker disabled")
		return
	}
	if cfg.RabbitMQURL == "" || cfg.RabbitMQEmailQueue == "" {
		logger.Fatal("RabbitMQ not configured")
	}
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
		logger.Fatal("Mailgun not configured")
	}

	consumer, err := helpers.NewRabbitConsumer(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue, 16)
	if err != nil {
		logger.WithError(err).Fatal("rabbitmq consumer")
	}
	defer consumer.Close()

	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()

	msgs, err := consumer.Deliveries()
	if err != nil {
		logger.WithError(err).Fatal("consume")
	}

	w := &worker{
		sender:   mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender),
		resolver: helpers.NewRedisGeoCache(rdb, mailtpl.IPAPIResolver{}, 24*time.Hour),
		logger:   logger,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for msg := range msgs {
			w.handle(context.Background(), msg)
		}
		close(done)
	}()

	logger.WithField("queue", cfg.RabbitMQEmailQueue).Info("email worker listening")
	<-stop
	logger.Info("shutting down...")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

type worker struct {
	sender   mailer.Sender
	resolver mailtpl.GeoResolver
	logger   *logrus.Logger
}

func (w *worker) handle(ctx context.Context, msg amqp.Delivery) {
	var job mailer.EmailJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		w.logger.WithError(err).Warn("bad message")
		_ = msg.Nack(false, false)
		return
	}
	subject, text, html, err := w.render(ctx, &job)
	if err != nil {
		helpers.LogError(w.logger, "render failed", err, logrus.Fields{"template": job.Template})
		_ = msg.Nack(false, false)
		return
	}

	c, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := w.sender.Send(c, job.To, subject, text, html); err != nil {
		helpers.LogError(w.logger, "send failed", err, logrus.Fields{"template": job.Template})
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
	helpers.LogInfo(w.logger, "email sent", logrus.Fields{"template": job.Template, "to": job.To})
}

// render resolves the template for a job. Jobs without a template are sent
// with their literal subject and bodies.
func (w *worker) render(ctx context.Context, job *mailer.EmailJob) (subject, text, html string, err error) {
	helpers.EnsureRecipientAndEmail(job)
	helpers.RouteToUniversal(job)
	helpers.LocalizeTimesIfPossible(ctx, w.resolver, job.Data)

	switch {
	case job.Template == "":
		return job.Subject, job.Text, job.HTML, nil
	case strings.EqualFold(job.Template, mailtpl.Universal):
		if loc, ok := job.Data["Location"]; (!ok || fmt.Sprintf("%v", loc) == "") && w.resolver != nil {
			if ip, ok := job.Data["IP"]; ok {
				if g, err := w.resolver.Lookup(ctx, fmt.Sprintf("%v", ip)); err == nil {
					job.Data["Location"] = mailtpl.FormatGeo(g)
				}
			}
		}
		html, err = mailtpl.RenderHTML(mailtpl.Universal, job.Data)
		if err != nil {
			return "", "", "", err
		}
		return helpers.SubjectForUniversal(job.Data), job.Text, html, nil
	default:
		return mailtpl.Render(job.Template, job.Data)
	}
}
