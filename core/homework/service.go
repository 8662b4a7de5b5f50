package homework

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/agenda/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound     = errors.New("assignment not found")
	ErrTaskNotFound = errors.New("task not found")

	errIDRequired     = core.NewValidationError(nil, core.FieldError{Field: "id", Error: "this field is required"})
	errUserIDRequired = core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "this field is required"})
)

type (
	// Repository is the persistent store of assignments, tasks and completion marks.
	// Every method runs on the optional exec (eg. a transaction) or on the repository's own DB.
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		// UpdateAssignment updates the mutable fields and returns the number of rows affected.
		UpdateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (int, error)
		DeleteAssignmentsByID(ctx context.Context, ids []int64, exec ...core.DBExecutor) (int, error)
		GetAssignment(ctx context.Context, id int64, exec ...core.DBExecutor) (Assignment, error)
		// QueryAssignments returns the assignments due within r, ordered by due date.
		QueryAssignments(ctx context.Context, r DateRange, exec ...core.DBExecutor) ([]Assignment, error)

		CreateTasks(ctx context.Context, assignmentID int64, descriptions []string, exec ...core.DBExecutor) ([]Task, error)
		// QueryTasks returns the tasks of the given assignments in id order, with userID's completion overlay.
		QueryTasks(ctx context.Context, assignmentIDs []int64, userID string, exec ...core.DBExecutor) ([]Task, error)
		GetTask(ctx context.Context, id int64, userID string, exec ...core.DBExecutor) (Task, error)
		DeleteTasksByID(ctx context.Context, ids []int64, exec ...core.DBExecutor) (int, error)

		// UpsertCompletionMark atomically inserts or overwrites the mark of (TaskID, UserID).
		// It returns ErrTaskNotFound if the task does not exist.
		UpsertCompletionMark(ctx context.Context, mark CompletionMark, exec ...core.DBExecutor) (CompletionMark, error)
	}

	Service interface {
		Create(ctx context.Context, na NewAssignment, creator string) (Assignment, error)
		// Update returns false when there is no assignment with this id; nothing is written then.
		Update(ctx context.Context, id int64, ua UpdateAssignment) (bool, error)
		Delete(ctx context.Context, id int64) error
		Toggle(ctx context.Context, ct CompletionToggle) (CompletionMark, error)
		List(ctx context.Context, filter QueryFilter, userID string) ([]Assignment, error)
		Get(ctx context.Context, id int64, userID string) (Assignment, error)
		GetTask(ctx context.Context, id int64, userID string) (Task, error)
	}

	service struct {
		db       core.DB
		repo     Repository
		validate *validator.Validate
		conf     *core.Config
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(db core.DB, repo Repository, validate *validator.Validate, conf *core.Config) Service {
	return &service{
		db:       db,
		repo:     repo,
		validate: validate,
		conf:     conf,
	}
}

// today is the current calendar date in the configured time zone.
func (svc *service) today() Date {
	loc := svc.conf.Location
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(NowFunc().In(loc))
}

func (svc *service) Create(ctx context.Context, na NewAssignment, creator string) (Assignment, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Assignment{}, err
	}
	dueDate, err := ParseDate(na.DueDate)
	if err != nil {
		return Assignment{}, core.NewValidationError(nil, core.FieldError{Field: "due_date", Error: err.Error()})
	}
	creator = core.CleanString(creator)

	asgmt := Assignment{
		Title:     na.Title,
		Subject:   na.Subject,
		DueDate:   dueDate,
		Color:     null.NewString(na.Color, na.Color != ""),
		CreatedBy: null.NewString(creator, creator != ""),
		CreatedAt: NowFunc().UTC(),
	}

	err = core.InTx(ctx, svc.db, func(tx core.DBTransactor) error {
		var err error
		if asgmt, err = svc.repo.CreateAssignment(ctx, asgmt, tx); err != nil {
			return err
		}
		asgmt.Tasks, err = svc.repo.CreateTasks(ctx, asgmt.ID, na.Tasks, tx)
		return err
	})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}
	return asgmt, nil
}

func (svc *service) Update(ctx context.Context, id int64, ua UpdateAssignment) (bool, error) {
	if id <= 0 {
		return false, errIDRequired
	}
	if err := ua.Validate(svc.validate); err != nil {
		return false, err
	}
	dueDate, err := ParseDate(ua.DueDate)
	if err != nil {
		return false, core.NewValidationError(nil, core.FieldError{Field: "due_date", Error: err.Error()})
	}

	var found bool
	err = core.InTx(ctx, svc.db, func(tx core.DBTransactor) error {
		asgmt := Assignment{
			ID:      id,
			Title:   ua.Title,
			Subject: ua.Subject,
			DueDate: dueDate,
			Color:   null.NewString(ua.Color, ua.Color != ""),
		}
		cnt, err := svc.repo.UpdateAssignment(ctx, asgmt, tx)
		if err != nil || cnt == 0 {
			return err
		}
		found = true

		current, err := svc.repo.QueryTasks(ctx, []int64{id}, "", tx)
		if err != nil {
			return err
		}
		removed, added := reconcileTasks(current, ua.Tasks)
		if len(removed) > 0 {
			if _, err = svc.repo.DeleteTasksByID(ctx, removed, tx); err != nil {
				return err
			}
		}
		if len(added) > 0 {
			if _, err = svc.repo.CreateTasks(ctx, id, added, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "updating assignment")
	}
	return found, nil
}

func (svc *service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return errIDRequired
	}
	if _, err := svc.repo.DeleteAssignmentsByID(ctx, []int64{id}); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return nil
}

func (svc *service) Toggle(ctx context.Context, ct CompletionToggle) (CompletionMark, error) {
	if err := ct.Validate(svc.validate); err != nil {
		return CompletionMark{}, err
	}
	mark, err := svc.repo.UpsertCompletionMark(ctx, CompletionMark{
		TaskID:      ct.TaskID,
		UserID:      ct.UserID,
		IsCompleted: ct.IsCompleted,
	})
	if err != nil {
		return CompletionMark{}, errors.Wrap(err, "toggling task")
	}
	return mark, nil
}

func (svc *service) List(ctx context.Context, filter QueryFilter, userID string) ([]Assignment, error) {
	if userID = core.CleanString(userID); userID == "" {
		return nil, errUserIDRequired
	}
	if err := filter.Validate(svc.validate); err != nil {
		return nil, err
	}
	dateRange, err := filter.Range(svc.today(), svc.conf.Homework.UpcomingDays, svc.conf.Homework.HistoryMonths)
	if err != nil {
		return nil, err
	}

	assignments, err := svc.repo.QueryAssignments(ctx, dateRange)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	if len(assignments) == 0 {
		return []Assignment{}, nil
	}
	if err = svc.attachTasks(ctx, assignments, userID); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (svc *service) Get(ctx context.Context, id int64, userID string) (Assignment, error) {
	if userID = core.CleanString(userID); userID == "" {
		return Assignment{}, errUserIDRequired
	}
	asgmt, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "getting assignment")
	}
	assignments := []Assignment{asgmt}
	if err = svc.attachTasks(ctx, assignments, userID); err != nil {
		return Assignment{}, err
	}
	return assignments[0], nil
}

func (svc *service) GetTask(ctx context.Context, id int64, userID string) (Task, error) {
	if userID = core.CleanString(userID); userID == "" {
		return Task{}, errUserIDRequired
	}
	task, err := svc.repo.GetTask(ctx, id, userID)
	if err != nil {
		return Task{}, errors.Wrap(err, "getting task")
	}
	return task, nil
}

// attachTasks loads the tasks of assignments with userID's overlay, in id order.
func (svc *service) attachTasks(ctx context.Context, assignments []Assignment, userID string) error {
	ids := make([]int64, 0, len(assignments))
	idx := make(map[int64]int, len(assignments))
	for i := range assignments {
		assignments[i].Tasks = []Task{}
		ids = append(ids, assignments[i].ID)
		idx[assignments[i].ID] = i
	}

	tasks, err := svc.repo.QueryTasks(ctx, ids, userID)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	for _, t := range tasks {
		if i, ok := idx[t.AssignmentID]; ok {
			assignments[i].Tasks = append(assignments[i].Tasks, t)
		}
	}
	return nil
}

// reconcileTasks diffs the current tasks (in id order) against the new descriptions.
// Descriptions are matched as a multiset: a matched task is kept along with its completion marks,
// unmatched tasks are removed and unmatched descriptions are added in the given order.
func reconcileTasks(current []Task, descriptions []string) (removed []int64, added []string) {
	wanted := make(map[string]int, len(descriptions))
	for _, desc := range descriptions {
		wanted[desc]++
	}

	kept := make(map[string]int, len(current))
	for _, t := range current {
		if wanted[t.Description] > 0 {
			wanted[t.Description]--
			kept[t.Description]++
			continue
		}
		removed = append(removed, t.ID)
	}

	for _, desc := range descriptions {
		if kept[desc] > 0 {
			kept[desc]--
			continue
		}
		added = append(added, desc)
	}
	return removed, added
}
