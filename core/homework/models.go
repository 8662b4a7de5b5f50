package homework

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/agenda/core"
)

// Filter modes, in priority order.
const (
	ModeUpcoming = "upcoming"
	ModeRange    = "range"
	ModeMonth    = "month"
	ModeDefault  = "default"
)

type Assignment struct {
	ID        int64       `db:"id" json:"id"`
	Title     string      `db:"title" json:"title"`
	Subject   string      `db:"subject" json:"subject"`
	DueDate   Date        `db:"due_date" json:"due_date"`
	Color     null.String `db:"color" json:"color"`
	CreatedBy null.String `db:"created_by" json:"created_by"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"` // UTC
	Tasks     []Task      `db:"-" json:"tasks"`
}

// Task is a sub-step owned by exactly one Assignment.
// IsCompleted is the completion overlay of the user the task was loaded for.
type Task struct {
	ID           int64  `db:"id" json:"id"`
	AssignmentID int64  `db:"assignment_id" json:"assignment_id"`
	Description  string `db:"description" json:"description"`
	IsCompleted  bool   `db:"is_completed" json:"is_completed"`
}

type CompletionMark struct {
	TaskID      int64  `db:"task_id" json:"task_id"`
	UserID      string `db:"user_id" json:"-"`
	IsCompleted bool   `db:"is_completed" json:"is_completed"`
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title   string   `json:"title" validate:"required,notblank,max=255"`
	Subject string   `json:"subject" validate:"required,notblank,max=100"`
	DueDate string   `json:"due_date" validate:"required,isodate"`
	Color   string   `json:"color" validate:"omitempty,max=32"`
	Tasks   []string `json:"tasks" validate:"omitempty,dive,max=500"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Subject = core.CleanString(na.Subject)
	na.DueDate = core.CleanString(na.DueDate)
	na.Color = core.CleanString(na.Color)
	na.Tasks = cleanDescriptions(na.Tasks)
	return validate.Struct(na)
}

// UpdateAssignment defines what information may be provided to modify an existing Assignment.
// Tasks is the complete new task list.
type UpdateAssignment struct {
	Title   string   `json:"title" validate:"required,notblank,max=255"`
	Subject string   `json:"subject" validate:"required,notblank,max=100"`
	DueDate string   `json:"due_date" validate:"required,isodate"`
	Color   string   `json:"color" validate:"omitempty,max=32"`
	Tasks   []string `json:"tasks" validate:"omitempty,dive,max=500"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	ua.Subject = core.CleanString(ua.Subject)
	ua.DueDate = core.CleanString(ua.DueDate)
	ua.Color = core.CleanString(ua.Color)
	ua.Tasks = cleanDescriptions(ua.Tasks)
	return validate.Struct(ua)
}

type CompletionToggle struct {
	TaskID      int64  `json:"task_id" validate:"required,gt=0"`
	UserID      string `json:"user_id" validate:"required,notblank"`
	IsCompleted bool   `json:"is_completed"`
}

func (ct *CompletionToggle) Validate(validate *validator.Validate) error {
	ct.UserID = core.CleanString(ct.UserID)
	return validate.Struct(ct)
}

// QueryFilter selects which assignments are listed.
// Modes are mutually exclusive and applied in priority order: upcoming, range, month, default.
type QueryFilter struct {
	Upcoming  bool   `json:"upcoming" query:"upcoming"`
	StartDate string `json:"start_date" query:"start_date" validate:"required_with=EndDate,isodate"`
	EndDate   string `json:"end_date" query:"end_date" validate:"required_with=StartDate,isodate"`
	Month     string `json:"month" query:"month" validate:"isomonth"`
}

func (qf *QueryFilter) Clean() {
	qf.StartDate = core.CleanString(qf.StartDate)
	qf.EndDate = core.CleanString(qf.EndDate)
	qf.Month = core.CleanString(qf.Month)
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Clean()
	return validate.Struct(qf)
}

func (qf QueryFilter) Mode() string {
	switch {
	case qf.Upcoming:
		return ModeUpcoming
	case qf.StartDate != "" && qf.EndDate != "":
		return ModeRange
	case qf.Month != "":
		return ModeMonth
	default:
		return ModeDefault
	}
}

// Key identifies the filter, only keeping the fields its mode uses.
func (qf QueryFilter) Key() string {
	switch mode := qf.Mode(); mode {
	case ModeRange:
		return mode + ":" + qf.StartDate + ":" + qf.EndDate
	case ModeMonth:
		return mode + ":" + qf.Month
	default:
		return mode
	}
}

// DateRange bounds due dates, both ends inclusive. A zero To means no upper bound.
type DateRange struct {
	From Date
	To   Date
}

// Range resolves the filter into due date bounds relative to `today`.
func (qf QueryFilter) Range(today Date, upcomingDays, historyMonths int) (DateRange, error) {
	switch qf.Mode() {
	case ModeUpcoming:
		return DateRange{From: today, To: today.AddDays(upcomingDays)}, nil
	case ModeRange:
		from, err := ParseDate(qf.StartDate)
		if err != nil {
			return DateRange{}, core.NewValidationError(nil, core.FieldError{Field: "start_date", Error: err.Error()})
		}
		to, err := ParseDate(qf.EndDate)
		if err != nil {
			return DateRange{}, core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: err.Error()})
		}
		if from.After(to) {
			return DateRange{}, core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: errEndBeforeStart.Error()})
		}
		return DateRange{From: from, To: to}, nil
	case ModeMonth:
		first, last, err := MonthRange(qf.Month)
		if err != nil {
			return DateRange{}, core.NewValidationError(nil, core.FieldError{Field: "month", Error: err.Error()})
		}
		return DateRange{From: first, To: last}, nil
	default:
		return DateRange{From: today.AddMonths(-historyMonths)}, nil
	}
}

var errEndBeforeStart = errors.New("end_date cannot be before start_date")

// cleanDescriptions trims task descriptions and drops the blank ones.
func cleanDescriptions(descs []string) []string {
	if descs == nil {
		return nil
	}
	cleaned := make([]string, 0, len(descs))
	for _, d := range descs {
		if d = core.CleanString(d); d != "" {
			cleaned = append(cleaned, d)
		}
	}
	return cleaned
}
