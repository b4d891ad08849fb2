package dto

type HealthResponse struct {
	Status  string `json:"status"`
	Backend bool   `json:"backend"`
}
