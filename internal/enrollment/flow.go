package enrollment

import "log/slog"

type phase int

const (
	phaseNew phase = iota
	phaseProvisioned
	phaseLinkReady
	phaseChallengeIssued
	phaseComplete
	phaseError
)

func (p phase) String() string {
	switch p {
	case phaseNew:
		return "NEW"
	case phaseProvisioned:
		return "PROVISIONED"
	case phaseLinkReady:
		return "LINK_READY"
	case phaseChallengeIssued:
		return "CHALLENGE_ISSUED"
	case phaseComplete:
		return "COMPLETE"
	case phaseError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (p phase) terminal() bool {
	return p == phaseComplete || p == phaseError
}

// flow is the state of a single Enroll call. Nothing in it outlives the call.
type flow struct {
	req     Request
	data    *TokenData
	phase   phase
	status  Status
	message string
}

func (f *flow) advance(to phase) {
	if f.phase.terminal() {
		slog.Warn("Ignoring transition out of terminal state", "from", f.phase, "to", to)
		return
	}
	slog.Debug("Enrollment transition",
		"principal", f.req.PrincipalID,
		"method", f.req.Method,
		"from", f.phase,
		"to", to)
	f.phase = to
}

func (f *flow) complete(message string) {
	f.advance(phaseComplete)
	f.status = StatusComplete
	f.message = message
	f.data.ProvisioningTaskID = nil
	f.data.ContinuationState = ""
	f.data.ChallengeImage = ""
}

func (f *flow) fail(message string) {
	f.advance(phaseError)
	f.status = StatusError
	f.message = message
	f.data = nil
}

func (f *flow) challenge(code, image string) {
	f.advance(phaseChallengeIssued)
	f.status = StatusChallenge
	f.message = msgChallenge
	f.data.ContinuationState = code
	f.data.ChallengeImage = image
	f.data.ActivationURL = ""
	f.data.ProvisioningTaskID = nil
}

func (f *flow) response() *Response {
	slog.Info("Enrollment finished",
		"principal", f.req.PrincipalID,
		"method", f.req.Method,
		"state", f.phase,
		"status", f.status)
	return &Response{
		Status:  f.status,
		Message: f.message,
		Data:    f.data,
	}
}
