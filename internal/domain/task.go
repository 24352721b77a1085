package domain

// Task is the only persisted entity. It does not depend on gin, SQLite or Redis.
type Task struct {
	ID        int64
	Title     string
	Completed bool
}

// TaskPatch is a partial update. Nil fields keep their current value.
type TaskPatch struct {
	Title     *string
	Completed *bool
}

// Apply returns t with the present fields of p applied over it.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

// Empty reports whether the patch carries no fields.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Completed == nil
}
