package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentdesk/dentdesk/internal/domain/patient"
	"github.com/dentdesk/dentdesk/internal/domain/scheduling"
	"github.com/dentdesk/dentdesk/internal/platform/metrics"
	"github.com/dentdesk/dentdesk/internal/platform/notification"
)

// AppointmentSource lists the confirmed appointments starting in [from, to).
type AppointmentSource interface {
	Upcoming(ctx context.Context, from, to time.Time) ([]*scheduling.Appointment, error)
}

type PatientLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Notifier is the part of the notification manager the job uses.
type Notifier interface {
	ChannelFor(email string) notification.Channel
	SendFromTemplate(ctx context.Context, channel notification.Channel, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

type JobConfig struct {
	Interval    time.Duration
	Lead        time.Duration
	Window      time.Duration
	ClinicName  string
	ClinicPhone string
}

// Job periodically sends reminders for appointments about Lead away.
type Job struct {
	cfg          JobConfig
	appointments AppointmentSource
	patients     PatientLookup
	generator    Generator
	notifier     Notifier
	sent         SentStore
	loc          *time.Location
	logger       zerolog.Logger
	now          func() time.Time
	scheduler    *gocron.Scheduler
}

func NewJob(cfg JobConfig, appts AppointmentSource, patients PatientLookup, gen Generator, notifier Notifier, sent SentStore, loc *time.Location, logger zerolog.Logger) *Job {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Lead <= 0 {
		cfg.Lead = 24 * time.Hour
	}
	if cfg.Window <= 0 {
		cfg.Window = cfg.Interval * 2
	}
	if loc == nil {
		loc = time.Local
	}
	return &Job{
		cfg:          cfg,
		appointments: appts,
		patients:     patients,
		generator:    gen,
		notifier:     notifier,
		sent:         sent,
		loc:          loc,
		logger:       logger.With().Str("component", "reminder-job").Logger(),
		now:          time.Now,
	}
}

// Start schedules RunOnce on the configured interval. Runs never overlap.
func (j *Job) Start(ctx context.Context) error {
	s := gocron.NewScheduler(j.loc)
	s.SingletonModeAll()
	minutes := int(j.cfg.Interval / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	_, err := s.Every(minutes).Minutes().Do(func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.Error().Err(err).Msg("reminder scan failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminder job: %w", err)
	}
	s.StartAsync()
	j.scheduler = s
	j.logger.Info().Dur("interval", j.cfg.Interval).Dur("lead", j.cfg.Lead).Msg("reminder job started")
	return nil
}

func (j *Job) Stop() {
	if j.scheduler != nil {
		j.scheduler.Stop()
	}
}

// RunOnce scans the reminder window and sends what has not been sent yet.
// It returns how many reminders were delivered.
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	target := j.now().Add(j.cfg.Lead)
	from := target.Add(-j.cfg.Window / 2)
	to := target.Add(j.cfg.Window / 2)

	due, err := j.appointments.Upcoming(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("list upcoming appointments: %w", err)
	}

	delivered := 0
	for _, a := range due {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		ok, err := j.remind(ctx, a)
		if err != nil {
			j.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("reminder not sent")
			continue
		}
		if ok {
			delivered++
		}
	}
	j.logger.Debug().Time("from", from).Time("to", to).Int("due", len(due)).Int("sent", delivered).Msg("reminder scan done")
	return delivered, nil
}

func (j *Job) remind(ctx context.Context, a *scheduling.Appointment) (bool, error) {
	key := a.ID.String()
	fresh, err := j.sent.MarkSent(ctx, key, j.cfg.Lead+j.cfg.Window)
	if err != nil {
		return false, err
	}
	if !fresh {
		return false, nil
	}

	p, err := j.patients.FindByID(ctx, a.PatientID)
	if err != nil {
		_ = j.sent.Forget(ctx, key)
		return false, fmt.Errorf("find patient: %w", err)
	}

	local := a.DateTime.In(j.loc)
	msg, err := j.generator.Generate(ctx, Request{
		PatientName:     p.Name,
		AppointmentTime: local.Format("02/01/2006 à 15:04"),
	})
	if err != nil {
		_ = j.sent.Forget(ctx, key)
		return false, fmt.Errorf("generate reminder: %w", err)
	}

	channel := j.notifier.ChannelFor(p.Email)
	recipient := p.Email
	if channel != notification.ChannelEmail {
		recipient = p.Name
	}
	data := map[string]string{
		"message":      msg,
		"date":         local.Format("02/01/2006"),
		"time":         local.Format("15:04"),
		"clinic_name":  j.cfg.ClinicName,
		"clinic_phone": j.cfg.ClinicPhone,
	}
	if _, err := j.notifier.SendFromTemplate(ctx, channel, notification.TemplateAppointmentReminder, data, recipient); err != nil {
		metrics.RemindersSent.WithLabelValues(string(channel), notification.StatusFailed).Inc()
		_ = j.sent.Forget(ctx, key)
		return false, fmt.Errorf("deliver reminder: %w", err)
	}
	metrics.RemindersSent.WithLabelValues(string(channel), notification.StatusSent).Inc()
	return true, nil
}
