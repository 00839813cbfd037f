package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/dentdesk/dentdesk/internal/platform/apperr"
	"github.com/dentdesk/dentdesk/internal/platform/money"
)

type stubBalances struct {
	owed map[uuid.UUID]money.Cents
}

func (s *stubBalances) Outstanding(_ context.Context, id uuid.UUID) (money.Cents, error) {
	return s.owed[id], nil
}

func newTestService() *Service {
	return NewService(NewMemRepo(), "MA")
}

func validPatient() *Patient {
	return &Patient{
		Name:        "Fatima Zahra",
		Email:       "fatima.zahra@email.com",
		Phone:       "+212 612-345678",
		DateOfBirth: "1985-05-20",
		Address:     "123 Rue de la Liberté, Casablanca",
	}
}

func TestRegister(t *testing.T) {
	svc := newTestService()
	p := validPatient()
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if p.Phone != "+212612345678" {
		t.Errorf("expected E.164 phone, got %s", p.Phone)
	}
	if p.AvatarURL != DefaultAvatar(p.ID) {
		t.Errorf("expected default avatar, got %s", p.AvatarURL)
	}
	if p.Allergies == nil || len(p.Allergies) != 0 {
		t.Errorf("expected empty allergies, got %v", p.Allergies)
	}
	if p.MedicalHistory == nil || len(p.MedicalHistory) != 0 {
		t.Errorf("expected empty medical history, got %v", p.MedicalHistory)
	}
	if p.Notes != "" {
		t.Errorf("expected empty notes, got %q", p.Notes)
	}

	got, err := svc.FindByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Fatima Zahra" {
		t.Errorf("expected name Fatima Zahra, got %s", got.Name)
	}
}

func TestRegister_LocalPhone(t *testing.T) {
	svc := newTestService()
	p := validPatient()
	p.Phone = "0612345678"
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Phone != "+212612345678" {
		t.Errorf("expected +212612345678, got %s", p.Phone)
	}
}

func TestRegister_EmptyNameAddsNothing(t *testing.T) {
	svc := newTestService()
	p := validPatient()
	p.Name = "   "
	err := svc.Register(context.Background(), p)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, total, _ := svc.List(context.Background(), "", 10, 0)
	if total != 0 {
		t.Errorf("expected no patients, got %d", total)
	}
}

func TestRegister_RequiredFields(t *testing.T) {
	cases := map[string]func(p *Patient){
		"email":         func(p *Patient) { p.Email = "" },
		"phone":         func(p *Patient) { p.Phone = "" },
		"date_of_birth": func(p *Patient) { p.DateOfBirth = "" },
		"address":       func(p *Patient) { p.Address = "" },
	}
	for field, mutate := range cases {
		svc := newTestService()
		p := validPatient()
		mutate(p)
		err := svc.Register(context.Background(), p)
		var ae *apperr.Error
		if !errors.As(err, &ae) || ae.Field != field {
			t.Errorf("%s: expected missing field error, got %v", field, err)
		}
	}
}

func TestRegister_InvalidValues(t *testing.T) {
	svc := newTestService()

	p := validPatient()
	p.Email = "not-an-email"
	if err := svc.Register(context.Background(), p); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected invalid email error, got %v", err)
	}

	p = validPatient()
	p.Phone = "12"
	if err := svc.Register(context.Background(), p); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected invalid phone error, got %v", err)
	}

	p = validPatient()
	p.DateOfBirth = "20/05/1985"
	if err := svc.Register(context.Background(), p); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected invalid date error, got %v", err)
	}
}

func TestRegister_CleansLabels(t *testing.T) {
	svc := newTestService()
	p := validPatient()
	p.Allergies = []string{" Pénicilline ", "", "pénicilline", "Latex"}
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Allergies) != 2 || p.Allergies[0] != "Pénicilline" || p.Allergies[1] != "Latex" {
		t.Errorf("unexpected allergies: %v", p.Allergies)
	}
}

func TestFindByID_NotFound(t *testing.T) {
	svc := newTestService()
	_, err := svc.FindByID(context.Background(), uuid.New())
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	svc := newTestService()
	p := validPatient()
	svc.Register(context.Background(), p)

	upd := validPatient()
	upd.ID = p.ID
	upd.Name = "Fatima Zahra Bennani"
	upd.Notes = "Préfère les rendez-vous le matin."
	if err := svc.Update(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.FindByID(context.Background(), p.ID)
	if got.Name != "Fatima Zahra Bennani" || got.Notes == "" {
		t.Errorf("update not applied: %+v", got)
	}
	if got.AvatarURL != p.AvatarURL {
		t.Errorf("expected avatar kept, got %s", got.AvatarURL)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc := newTestService()
	p := validPatient()
	p.ID = uuid.New()
	if err := svc.Update(context.Background(), p); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc := newTestService()
	balances := &stubBalances{owed: map[uuid.UUID]money.Cents{}}
	svc.SetBalanceChecker(balances)

	p := validPatient()
	svc.Register(context.Background(), p)

	balances.owed[p.ID] = money.MustParse("500")
	if err := svc.Delete(context.Background(), p.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected delete blocked by balance, got %v", err)
	}

	balances.owed[p.ID] = 0
	if err := svc.Delete(context.Background(), p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.FindByID(context.Background(), p.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected patient gone, got %v", err)
	}
}

func TestList_Search(t *testing.T) {
	svc := newTestService()
	for _, name := range []string{"Youssef El Amrani", "Amina Benjelloun", "Karim Alaoui"} {
		p := validPatient()
		p.Name = name
		if err := svc.Register(context.Background(), p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	items, total, err := svc.List(context.Background(), "", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || items[0].Name != "Amina Benjelloun" {
		t.Errorf("expected 3 patients sorted by name, got %d first=%s", total, items[0].Name)
	}

	items, total, _ = svc.List(context.Background(), "ala", 10, 0)
	if total != 1 || items[0].Name != "Karim Alaoui" {
		t.Errorf("expected Karim Alaoui, got %d results", total)
	}
}
