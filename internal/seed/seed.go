package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"clinicdesk/backend/internal/domain"
	"clinicdesk/backend/internal/service/appointments"
)

type Record struct {
	Key         string        `yaml:"key"`
	PatientName string        `yaml:"patientName"`
	Date        string        `yaml:"date"`
	Time        string        `yaml:"time"`
	Duration    int           `yaml:"duration"`
	DoctorName  string        `yaml:"doctorName"`
	Status      domain.Status `yaml:"status"`
	Mode        domain.Mode   `yaml:"mode"`
	Type        string        `yaml:"type"`
}

type File struct {
	Appointments []Record `yaml:"appointments"`
}

type creator interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
}

// Decode reads a fixture document. Unknown fields are rejected and every
// record needs a key.
func Decode(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return File{}, nil
		}
		return File{}, fmt.Errorf("decoding seed file: %w", err)
	}

	seen := make(map[string]bool, len(f.Appointments))
	for i, rec := range f.Appointments {
		key := strings.TrimSpace(rec.Key)
		if key == "" {
			return File{}, fmt.Errorf("seed record %d: key is required", i)
		}
		if seen[key] {
			return File{}, fmt.Errorf("seed record %d: duplicate key %q", i, key)
		}
		seen[key] = true
	}
	return f, nil
}

func LoadFile(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("opening seed file: %w", err)
	}
	defer fh.Close()
	return Decode(fh)
}

// Apply books every record through the scheduling service, so fixtures obey
// the same validation and conflict rules as live traffic. Records are keyed
// so applying the same file twice is a no-op. It stops at the first failure.
func Apply(ctx context.Context, svc creator, f File, log *slog.Logger) (int, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "seed"))

	for i, rec := range f.Appointments {
		appt, err := svc.Create(ctx, appointments.CreateInput{
			PatientName:    rec.PatientName,
			Date:           rec.Date,
			Time:           rec.Time,
			Duration:       rec.Duration,
			DoctorName:     rec.DoctorName,
			Mode:           rec.Mode,
			Status:         rec.Status,
			Type:           rec.Type,
			IdempotencyKey: "seed:" + strings.TrimSpace(rec.Key),
		})
		if err != nil {
			return i, fmt.Errorf("seeding %q: %w", rec.Key, err)
		}
		log.Debug("seeded appointment", slog.String("key", rec.Key), slog.String("appointment_id", appt.ID))
	}
	log.Info("seed applied", slog.Int("count", len(f.Appointments)))
	return len(f.Appointments), nil
}
