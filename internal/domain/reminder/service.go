package reminder

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Result carries either a message or an error text for the desk, never both.
type Result struct {
	Message      string `json:"message,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type Service struct {
	gen    Generator
	logger zerolog.Logger
}

func NewService(gen Generator, logger zerolog.Logger) *Service {
	return &Service{gen: gen, logger: logger.With().Str("component", "reminder").Logger()}
}

// Generate makes a single attempt at writing a reminder. Failures come back
// as a Result with ErrorMessage set.
func (s *Service) Generate(ctx context.Context, req Request) Result {
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.AppointmentTime = strings.TrimSpace(req.AppointmentTime)
	if req.PatientName == "" || req.AppointmentTime == "" {
		return Result{ErrorMessage: "Le nom du patient et l'heure du rendez-vous sont requis."}
	}

	msg, err := s.gen.Generate(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("patient", req.PatientName).Msg("reminder generation failed")
		return Result{ErrorMessage: "Impossible de générer le rappel. Veuillez réessayer."}
	}
	return Result{Message: msg}
}
