package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/agenda/core"
	"github.com/trezcool/agenda/core/homework"
	"github.com/trezcool/agenda/storage/database"
)

const (
	assignmentColumns = "id, title, subject, due_date, color, created_by, created_at"

	taskOverlayQuery = `
SELECT t.id, t.assignment_id, t.description, COALESCE(m.is_completed, FALSE) AS is_completed
FROM task t
LEFT JOIN completion_mark m ON m.task_id = t.id AND m.user_id = ?`
)

type homeworkRepository struct {
	repository
}

var _ homework.Repository = (*homeworkRepository)(nil) // interface compliance check

func NewHomeworkRepository(db core.DB) *homeworkRepository {
	return &homeworkRepository{repository{db: db}}
}

func (repo homeworkRepository) CreateAssignment(ctx context.Context, a homework.Assignment, exec ...core.DBExecutor) (homework.Assignment, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind(`
INSERT INTO assignment (title, subject, due_date, color, created_by, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`)

	if err := exe.QueryRowxContext(ctx, q, a.Title, a.Subject, a.DueDate, a.Color, a.CreatedBy, a.CreatedAt).Scan(&a.ID); err != nil {
		return homework.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo homeworkRepository) UpdateAssignment(ctx context.Context, a homework.Assignment, exec ...core.DBExecutor) (int, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind("UPDATE assignment SET title = ?, subject = ?, due_date = ?, color = ? WHERE id = ?")

	res, err := exe.ExecContext(ctx, q, a.Title, a.Subject, a.DueDate, a.Color, a.ID)
	if err != nil {
		return 0, errors.Wrap(err, "updating assignment")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting updated assignments")
	}
	return int(cnt), nil
}

func (repo homeworkRepository) DeleteAssignmentsByID(ctx context.Context, ids []int64, exec ...core.DBExecutor) (int, error) {
	return repo.deleteByID(ctx, "assignment", ids, exec)
}

func (repo homeworkRepository) deleteByID(ctx context.Context, table string, ids []int64, exec []core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	exe := repo.getExec(exec)
	q, args, err := sqlx.In("DELETE FROM "+table+" WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}

	res, err := exe.ExecContext(ctx, exe.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrapf(err, "deleting from %s", table)
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrapf(err, "counting deleted rows of %s", table)
	}
	return int(cnt), nil
}

func (repo homeworkRepository) GetAssignment(ctx context.Context, id int64, exec ...core.DBExecutor) (homework.Assignment, error) {
	exe := repo.getExec(exec)
	var a homework.Assignment
	q := exe.Rebind("SELECT " + assignmentColumns + " FROM assignment WHERE id = ?")

	if err := exe.GetContext(ctx, &a, q, id); err != nil {
		return homework.Assignment{}, trapNoRowsErr(err, homework.ErrNotFound, "getting assignment")
	}
	return a, nil
}

func (repo homeworkRepository) QueryAssignments(ctx context.Context, r homework.DateRange, exec ...core.DBExecutor) ([]homework.Assignment, error) {
	exe := repo.getExec(exec)
	q := "SELECT " + assignmentColumns + " FROM assignment WHERE due_date >= ?"
	args := []interface{}{r.From}
	if !r.To.IsZero() {
		q += " AND due_date <= ?"
		args = append(args, r.To)
	}
	q += " ORDER BY due_date, id"

	assignments := make([]homework.Assignment, 0)
	if err := exe.SelectContext(ctx, &assignments, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return assignments, nil
}

func (repo homeworkRepository) CreateTasks(ctx context.Context, assignmentID int64, descriptions []string, exec ...core.DBExecutor) ([]homework.Task, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind("INSERT INTO task (assignment_id, description) VALUES (?, ?) RETURNING id")

	tasks := make([]homework.Task, 0, len(descriptions))
	for _, desc := range descriptions {
		t := homework.Task{AssignmentID: assignmentID, Description: desc}
		if err := exe.QueryRowxContext(ctx, q, assignmentID, desc).Scan(&t.ID); err != nil {
			return nil, errors.Wrap(err, "inserting task")
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (repo homeworkRepository) QueryTasks(ctx context.Context, assignmentIDs []int64, userID string, exec ...core.DBExecutor) ([]homework.Task, error) {
	tasks := make([]homework.Task, 0)
	if len(assignmentIDs) == 0 {
		return tasks, nil
	}
	exe := repo.getExec(exec)
	q, args, err := sqlx.In(taskOverlayQuery+" WHERE t.assignment_id IN (?) ORDER BY t.id", userID, assignmentIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building tasks query")
	}

	if err = exe.SelectContext(ctx, &tasks, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	return tasks, nil
}

func (repo homeworkRepository) GetTask(ctx context.Context, id int64, userID string, exec ...core.DBExecutor) (homework.Task, error) {
	exe := repo.getExec(exec)
	var t homework.Task
	q := exe.Rebind(taskOverlayQuery + " WHERE t.id = ?")

	if err := exe.GetContext(ctx, &t, q, userID, id); err != nil {
		return homework.Task{}, trapNoRowsErr(err, homework.ErrTaskNotFound, "getting task")
	}
	return t, nil
}

func (repo homeworkRepository) DeleteTasksByID(ctx context.Context, ids []int64, exec ...core.DBExecutor) (int, error) {
	return repo.deleteByID(ctx, "task", ids, exec)
}

func (repo homeworkRepository) UpsertCompletionMark(ctx context.Context, mark homework.CompletionMark, exec ...core.DBExecutor) (homework.CompletionMark, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind(`
INSERT INTO completion_mark (task_id, user_id, is_completed)
VALUES (?, ?, ?)
ON CONFLICT (task_id, user_id) DO UPDATE SET is_completed = excluded.is_completed`)

	if _, err := exe.ExecContext(ctx, q, mark.TaskID, mark.UserID, mark.IsCompleted); err != nil {
		if database.IsForeignKeyViolation(err) {
			return homework.CompletionMark{}, homework.ErrTaskNotFound
		}
		return homework.CompletionMark{}, errors.Wrap(err, "upserting completion mark")
	}
	return mark, nil
}
