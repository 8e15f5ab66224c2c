package grpc

import "clinicdesk/backend/internal/domain"

type CreateAppointmentRequest struct {
	PatientName string `json:"patientName"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Duration    int    `json:"duration"`
	DoctorName  string `json:"doctorName"`
	Mode        string `json:"mode"`
	Status      string `json:"status,omitempty"`
	Type        string `json:"type,omitempty"`
}

type CreateAppointmentResponse struct {
	Appointment domain.Appointment `json:"appointment"`
}

type GetAppointmentRequest struct {
	ID string `json:"id"`
}

type GetAppointmentResponse struct {
	Appointment domain.Appointment `json:"appointment"`
}

// ListAppointmentsRequest filters are optional; omitted fields match
// everything.
type ListAppointmentsRequest struct {
	Date       *string `json:"date,omitempty"`
	Status     *string `json:"status,omitempty"`
	DoctorName *string `json:"doctorName,omitempty"`
}

type ListAppointmentsResponse struct {
	Appointments []domain.Appointment `json:"appointments"`
}

type UpdateAppointmentStatusRequest struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	ExpectedVersion *int   `json:"expectedVersion,omitempty"`
}

type UpdateAppointmentStatusResponse struct {
	Appointment domain.Appointment `json:"appointment"`
}

type DeleteAppointmentRequest struct {
	ID string `json:"id"`
}

type DeleteAppointmentResponse struct {
	Deleted bool `json:"deleted"`
}
