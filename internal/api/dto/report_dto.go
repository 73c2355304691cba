package dto

// PatchTicketRequest carries the mutable ticket fields. Both fields are
// optional and an empty body is treated as a no-op upstream.
type PatchTicketRequest struct {
	Status     *string `json:"status"`
	AssigneeID *int64  `json:"assignee_id"`
}

// CommentRequest is the payload for posting a ticket comment.
type CommentRequest struct {
	Body     string `json:"body"`
	IsPublic bool   `json:"is_public"`
	AuthorID *int64 `json:"author_id"`
}
