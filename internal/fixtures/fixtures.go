// Package fixtures seeds a store with a demo clinic day.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentdesk/dentdesk/internal/domain/inventory"
	"github.com/dentdesk/dentdesk/internal/domain/ledger"
	"github.com/dentdesk/dentdesk/internal/domain/patient"
	"github.com/dentdesk/dentdesk/internal/domain/scheduling"
	"github.com/dentdesk/dentdesk/internal/domain/treatment"
	"github.com/dentdesk/dentdesk/internal/domain/treatmentplan"
	"github.com/dentdesk/dentdesk/internal/platform/money"
)

// ErrAlreadySeeded is returned when the store already holds patients.
var ErrAlreadySeeded = errors.New("store already contains patients")

type Services struct {
	Patients     *patient.Service
	Treatments   *treatment.Service
	Ledger       *ledger.Service
	Plans        *treatmentplan.Service
	Appointments *scheduling.Service
	Inventory    *inventory.Service
}

type Result struct {
	Patients     int
	Appointments int
	Invoices     int
	Plans        int
	Items        int
}

var demoPatients = []patient.Patient{
	{Name: "Fatima Zahra", Email: "fatima.zahra@example.ma", Phone: "+212661234567", DateOfBirth: "1985-04-12",
		Address: "12 Rue Ibn Batouta, Casablanca", Allergies: []string{"Pénicilline"}, MedicalHistory: []string{"Hypertension"}},
	{Name: "Youssef El Amrani", Email: "youssef.elamrani@example.ma", Phone: "+212662345678", DateOfBirth: "1992-09-30",
		Address: "45 Avenue Hassan II, Rabat"},
	{Name: "Amina Benjelloun", Email: "amina.benjelloun@example.ma", Phone: "+212663456789", DateOfBirth: "1978-01-22",
		Address: "8 Boulevard Zerktouni, Casablanca", MedicalHistory: []string{"Diabète type 2"}},
	{Name: "Karim Alaoui", Email: "karim.alaoui@example.ma", Phone: "+212664567890", DateOfBirth: "2001-06-05",
		Address: "3 Rue de Fès, Marrakech", Allergies: []string{"Latex"}},
	{Name: "Nadia Saidi", Email: "nadia.saidi@example.ma", Phone: "+212665678901", DateOfBirth: "1969-11-17",
		Address: "27 Rue Moulay Youssef, Tanger"},
}

// Load seeds the demo data relative to now. Everything goes through the
// services so the same rules apply as for data typed at the desk.
func Load(ctx context.Context, svc Services, now time.Time, logger zerolog.Logger) (*Result, error) {
	_, total, err := svc.Patients.List(ctx, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}
	if total > 0 {
		return nil, ErrAlreadySeeded
	}

	res := &Result{}
	patients := make([]*patient.Patient, 0, len(demoPatients))
	for i := range demoPatients {
		p := demoPatients[i]
		p.Allergies = append([]string(nil), p.Allergies...)
		p.MedicalHistory = append([]string(nil), p.MedicalHistory...)
		if err := svc.Patients.Register(ctx, &p); err != nil {
			return nil, fmt.Errorf("register %s: %w", p.Name, err)
		}
		patients = append(patients, &p)
		res.Patients++
	}

	loc := svc.Appointments.Location()
	today := now.In(loc)
	day := today.Format("2006-01-02")

	for i, slot := range []struct{ clock, treatment string }{
		{"09:30", "Détartrage"},
		{"11:00", "Consultation de contrôle"},
		{"14:00", "Traitement de canal"},
		{"15:30", "Extraction dent de sagesse"},
	} {
		_, err := svc.Appointments.CreateAppointment(ctx, scheduling.AppointmentInput{
			PatientID: patients[i].ID.String(),
			Treatment: slot.treatment,
			Date:      day,
			Time:      slot.clock,
		})
		if err != nil {
			return nil, fmt.Errorf("appointment %s: %w", slot.clock, err)
		}
		res.Appointments++
	}

	history := []treatment.Treatment{
		{Tooth: 16, Procedure: "Composite occlusal", Date: today.AddDate(0, -6, 0).Format("2006-01-02"), Cost: money.MustParse("600")},
		{Tooth: 0, Procedure: "Détartrage complet", Date: today.AddDate(0, -2, 0).Format("2006-01-02"), Cost: money.MustParse("400")},
	}
	for i := range history {
		t := history[i]
		t.PatientID = patients[0].ID
		if err := svc.Treatments.Record(ctx, &t); err != nil {
			return nil, fmt.Errorf("treatment %s: %w", t.Procedure, err)
		}
	}

	invoices := []struct {
		patient     int
		description string
		amount      string
		paid        string
		method      string
	}{
		{0, "Détartrage complet", "400", "400", "Espèces"},
		{1, "Couronne céramique", "3500", "1500", "Carte"},
		{2, "Consultation et radiographie", "500", "", ""},
	}
	for _, in := range invoices {
		pid := patients[in.patient].ID
		inv, err := svc.Ledger.CreateInvoice(ctx, ledger.InvoiceInput{
			Description: in.description,
			Amount:      money.MustParse(in.amount),
			Date:        day,
			PatientID:   &pid,
		})
		if err != nil {
			return nil, fmt.Errorf("invoice %s: %w", in.description, err)
		}
		if in.paid != "" {
			if _, err := svc.Ledger.ApplyPayment(ctx, inv.ID, ledger.PaymentInput{Amount: money.MustParse(in.paid), Method: in.method}); err != nil {
				return nil, fmt.Errorf("payment on %s: %w", inv.Number, err)
			}
		}
		res.Invoices++
	}

	plans := []struct {
		patient int
		title   string
		total   string
		items   []treatmentplan.LineItem
		status  treatmentplan.Status
	}{
		{0, "Réhabilitation secteur postérieur", "8500", []treatmentplan.LineItem{
			{Tooth: 16, Procedure: "Couronne céramique", Cost: money.MustParse("4500")},
			{Tooth: 36, Procedure: "Traitement de canal", Cost: money.MustParse("2500")},
			{Tooth: 0, Procedure: "Détartrage et polissage", Cost: money.MustParse("1500")},
		}, treatmentplan.StatusAccepted},
		{3, "Esthétique antérieure", "6000", []treatmentplan.LineItem{
			{Tooth: 11, Procedure: "Facette céramique", Cost: money.MustParse("3500")},
			{Tooth: 0, Procedure: "Blanchiment", Cost: money.MustParse("2500")},
		}, treatmentplan.StatusProposed},
	}
	for _, in := range plans {
		pid := patients[in.patient].ID
		plan, err := svc.Plans.CreatePlan(ctx, treatmentplan.PlanInput{
			PatientID: &pid,
			Title:     in.title,
			TotalCost: money.MustParse(in.total),
			Items:     in.items,
		})
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", in.title, err)
		}
		if in.status != plan.Status {
			if _, err := svc.Plans.SetStatus(ctx, plan.ID, in.status); err != nil {
				return nil, fmt.Errorf("plan %s status: %w", plan.Number, err)
			}
		}
		res.Plans++
	}

	for _, it := range []inventory.Item{
		{Name: "Gants en nitrile", Stock: 180, MaxStock: 400},
		{Name: "Anesthésique local (articaïne)", Stock: 8, MaxStock: 50},
		{Name: "Composite A2", Stock: 0, MaxStock: 20},
		{Name: "Masques chirurgicaux", Stock: 120, MaxStock: 300},
		{Name: "Fil de suture résorbable", Stock: 9, MaxStock: 40},
		{Name: "Bain de bouche chlorhexidine", Stock: 30, MaxStock: 60},
	} {
		item := it
		if err := svc.Inventory.Create(ctx, &item); err != nil {
			return nil, fmt.Errorf("inventory %s: %w", item.Name, err)
		}
		res.Items++
	}

	logger.Info().
		Int("patients", res.Patients).
		Int("appointments", res.Appointments).
		Int("invoices", res.Invoices).
		Int("plans", res.Plans).
		Int("inventory_items", res.Items).
		Msg("demo data loaded")
	return res, nil
}
