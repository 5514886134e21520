package models

import (
	"time"

	"github.com/google/uuid"
)

// Gig описывает задание, на которое откликаются фрилансеры.
type Gig struct {
	ID                uuid.UUID `db:"id" json:"id"`
	ClientID          uuid.UUID `db:"client_id" json:"client_id"`
	Title             string    `db:"title" json:"title"`
	Description       string    `db:"description" json:"description"`
	Budget            *int64    `db:"budget" json:"budget,omitempty"`
	Status            string    `db:"status" json:"status"`
	IterationsAllowed int       `db:"iterations_allowed" json:"iterations_allowed"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// GigApplication — отклик фрилансера на задание. Статус отклика меняется только
// вперёд (pending -> accepted|rejected); у принятого отклика счётчик оставшихся
// итераций убывает и никогда не опускается ниже нуля.
type GigApplication struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	GigID               uuid.UUID `db:"gig_id" json:"gig_id"`
	FreelancerID        uuid.UUID `db:"freelancer_id" json:"freelancer_id"`
	ProposedRate        int64     `db:"proposed_rate" json:"proposed_rate"`
	ApplicationStatus   string    `db:"application_status" json:"application_status"`
	ProjectStatus       string    `db:"project_status" json:"project_status"`
	RemainingIterations int       `db:"remaining_iterations" json:"remaining_iterations"`
	TotalIterations     int       `db:"total_iterations" json:"total_iterations"`
	Version             int64     `db:"version" json:"-"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}
