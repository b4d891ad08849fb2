package dto

type DeleteUserResponse struct {
	DeleteStatus bool `json:"delete_status"`
}
