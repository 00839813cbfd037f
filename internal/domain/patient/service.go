package patient

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"

	"github.com/dentdesk/dentdesk/internal/platform/apperr"
	"github.com/dentdesk/dentdesk/internal/platform/money"
)

// BalanceChecker reports what a patient still owes. The ledger implements it.
type BalanceChecker interface {
	Outstanding(ctx context.Context, patientID uuid.UUID) (money.Cents, error)
}

type Service struct {
	patients Repository
	region   string
	balances BalanceChecker
}

// NewService validates phone numbers against region (ISO 3166 code, e.g. "MA")
// when they are not written in international form.
func NewService(repo Repository, region string) *Service {
	if region == "" {
		region = "MA"
	}
	return &Service{patients: repo, region: strings.ToUpper(region)}
}

// SetBalanceChecker blocks deletion of patients with unpaid invoices.
func (s *Service) SetBalanceChecker(b BalanceChecker) {
	s.balances = b
}

// Register validates and stores a new patient. Allergies, history and notes
// start empty unless provided.
func (s *Service) Register(ctx context.Context, p *Patient) error {
	if err := s.normalize(p); err != nil {
		return err
	}
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	if p.MedicalHistory == nil {
		p.MedicalHistory = []string{}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.AvatarURL == "" {
		p.AvatarURL = DefaultAvatar(p.ID)
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// Update replaces every editable field of an existing patient.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	existing, err := s.patients.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := s.normalize(p); err != nil {
		return err
	}
	if p.AvatarURL == "" {
		p.AvatarURL = existing.AvatarURL
	}
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	if p.MedicalHistory == nil {
		p.MedicalHistory = []string{}
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.patients.GetByID(ctx, id); err != nil {
		return err
	}
	if s.balances != nil {
		owed, err := s.balances.Outstanding(ctx, id)
		if err != nil {
			return fmt.Errorf("check outstanding balance: %w", err)
		}
		if owed > 0 {
			return apperr.Invalid("id", "patient still owes %s", owed)
		}
	}
	return s.patients.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, query, limit, offset)
}

func (s *Service) normalize(p *Patient) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	p.DateOfBirth = strings.TrimSpace(p.DateOfBirth)
	p.Address = strings.TrimSpace(p.Address)

	if p.Name == "" {
		return apperr.Missing("name")
	}
	if p.Email == "" {
		return apperr.Missing("email")
	}
	if p.Phone == "" {
		return apperr.Missing("phone")
	}
	if p.DateOfBirth == "" {
		return apperr.Missing("date_of_birth")
	}
	if p.Address == "" {
		return apperr.Missing("address")
	}

	addr, err := mail.ParseAddress(p.Email)
	if err != nil {
		return apperr.Invalid("email", "invalid email address %q", p.Email)
	}
	p.Email = addr.Address

	phone, err := s.normalizePhone(p.Phone)
	if err != nil {
		return err
	}
	p.Phone = phone

	dob, err := time.Parse(DateLayout, p.DateOfBirth)
	if err != nil {
		return apperr.Invalid("date_of_birth", "date_of_birth must be YYYY-MM-DD")
	}
	if dob.After(time.Now()) {
		return apperr.Invalid("date_of_birth", "date_of_birth is in the future")
	}

	p.Allergies = cleanLabels(p.Allergies)
	p.MedicalHistory = cleanLabels(p.MedicalHistory)
	return nil
}

// normalizePhone parses a local or international number and returns E.164.
func (s *Service) normalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, s.region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", apperr.Invalid("phone", "invalid phone number %q", raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// cleanLabels trims labels and drops blanks and duplicates, keeping order.
func cleanLabels(labels []string) []string {
	if labels == nil {
		return nil
	}
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[strings.ToLower(l)] {
			continue
		}
		seen[strings.ToLower(l)] = true
		out = append(out, l)
	}
	return out
}
