package dto

// CreateTaskRequest is the JSON body for POST /tasks.
// Title is a pointer so a missing or null title is rejected while "" is kept.
type CreateTaskRequest struct {
	Title *string `json:"title" binding:"required"`
}

// UpdateTaskRequest is the JSON body for PUT /tasks/{id}. Both fields are optional.
type UpdateTaskRequest struct {
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
}

type TaskResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
