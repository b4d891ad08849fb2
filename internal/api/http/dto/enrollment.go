package dto

// EnrollRequest is the optional body of an enrollment call. Both fields are
// empty when starting; the second API call echoes state back with the answer.
type EnrollRequest struct {
	State             string `json:"state"`
	ResponseChallenge string `json:"response_challenge"`
}
