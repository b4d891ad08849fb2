// Package enrollment drives a principal through provisioning and activation
// of an authenticator, including the two-call challenge/response exchange.
package enrollment

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/EternisAI/silo-enroll/internal/bsidca"
	"github.com/EternisAI/silo-enroll/internal/metrics"
	"github.com/EternisAI/silo-enroll/internal/tokens"
)

const defaultDeepLinkPrefix = "mobilepassplus://autoenrollment?str="

// Provisioner submits a provisioning request and resolves its task id, or
// 0 when none could be resolved.
type Provisioner interface {
	Provision(ctx context.Context, owner, organization string, kind tokens.Kind) (int, error)
}

type Config struct {
	DeepLinkPrefix string `mapstructure:"deep_link_prefix"`
}

type Service struct {
	source      bsidca.Source
	provisioner Provisioner
	cfg         Config
	metrics     *metrics.Metrics
}

func NewService(source bsidca.Source, provisioner Provisioner, cfg Config, m *metrics.Metrics) *Service {
	if cfg.DeepLinkPrefix == "" {
		cfg.DeepLinkPrefix = defaultDeepLinkPrefix
	}
	return &Service{
		source:      source,
		provisioner: provisioner,
		cfg:         cfg,
		metrics:     m,
	}
}

// Enroll runs one enrollment call to its outcome. Remote faults become an
// ERROR outcome; only a failure to acquire the backend session is returned
// as an error.
func (s *Service) Enroll(ctx context.Context, req Request) (*Response, error) {
	method, err := ParseMethod(string(req.Method))
	if err != nil {
		return nil, err
	}
	kind, err := tokens.ParseKind(string(req.Kind))
	if err != nil {
		return nil, err
	}
	req.Method, req.Kind = method, kind

	f := &flow{req: req, data: &TokenData{Method: req.Method, Kind: req.Kind}}
	slog.Info("Enrollment started",
		"principal", req.PrincipalID,
		"organization", req.Organization,
		"kind", req.Kind,
		"method", req.Method,
		"resumed", req.ContinuationState != "")

	switch req.Method {
	case MethodEmail:
		err = s.byEmail(ctx, f)
	case MethodURL:
		err = s.byURL(ctx, f)
	case MethodAPI:
		err = s.byAPI(ctx, f)
	default:
		err = ErrUnsupportedMethod
	}
	if err != nil {
		return nil, err
	}

	resp := f.response()
	s.metrics.EnrollmentOutcome(string(req.Method), string(resp.Status))
	return resp, nil
}

func (s *Service) provision(ctx context.Context, f *flow) (bool, error) {
	taskID, err := s.provisioner.Provision(ctx, f.req.PrincipalID, f.req.Organization, f.req.Kind)
	if err != nil {
		return false, err
	}
	if taskID == 0 {
		return false, nil
	}
	f.data.ProvisioningTaskID = &taskID
	f.advance(phaseProvisioned)
	return true, nil
}

func (s *Service) byEmail(ctx context.Context, f *flow) error {
	ok, err := s.provision(ctx, f)
	if err != nil {
		return err
	}
	if !ok {
		f.fail(msgEmailFailed)
		return nil
	}
	f.complete(msgEmailSent)
	return nil
}

// link performs provisioning and fetches the enrollment URL for the task.
func (s *Service) link(ctx context.Context, f *flow) (bool, error) {
	ok, err := s.provision(ctx, f)
	if err != nil || !ok {
		return false, err
	}

	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return false, err
	}

	taskID := *f.data.ProvisioningTaskID
	link, err := svc.GetEnrollmentURL(ctx, f.req.PrincipalID, taskID, f.req.Organization)
	if err != nil {
		slog.Error("Failed to get enrollment URL", "principal", f.req.PrincipalID, "task_id", taskID, "error", err)
		return false, nil
	}
	if strings.TrimSpace(link) == "" {
		slog.Warn("Backend returned an empty enrollment URL", "principal", f.req.PrincipalID, "task_id", taskID)
		return false, nil
	}

	f.data.ActivationURL = link
	f.advance(phaseLinkReady)
	return true, nil
}

func (s *Service) byURL(ctx context.Context, f *flow) error {
	ok, err := s.link(ctx, f)
	if err != nil {
		return err
	}
	if !ok {
		f.fail(msgLinkFailed)
		return nil
	}
	f.complete(msgLinkReady)
	return nil
}

func (s *Service) byAPI(ctx context.Context, f *flow) error {
	switch {
	case f.req.Kind == tokens.KindMobilePASS:
		return s.mobilePASS(ctx, f)
	case f.req.ContinuationState == "":
		return s.startChallenge(ctx, f)
	default:
		return s.answerChallenge(ctx, f)
	}
}

func (s *Service) mobilePASS(ctx context.Context, f *flow) error {
	ok, err := s.link(ctx, f)
	if err != nil {
		return err
	}
	if !ok {
		f.fail(msgAPIFailed)
		return nil
	}

	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return err
	}

	taskID := *f.data.ProvisioningTaskID
	code, err := svc.GetMobilePASSProvisioningActivationCode(ctx, f.req.PrincipalID, taskID, f.req.Organization)
	if err != nil {
		slog.Error("Failed to get activation code", "principal", f.req.PrincipalID, "task_id", taskID, "error", err)
		f.fail(msgAPIFailed)
		return nil
	}
	if code == "" {
		slog.Warn("Backend returned an empty activation code", "principal", f.req.PrincipalID, "task_id", taskID)
		f.fail(msgAPIFailed)
		return nil
	}

	f.data.ActivationURL = s.cfg.DeepLinkPrefix + code
	f.complete(msgActivationLink)
	return nil
}

func (s *Service) startChallenge(ctx context.Context, f *flow) error {
	ok, err := s.link(ctx, f)
	if err != nil {
		return err
	}
	if !ok {
		f.fail(msgAPIFailed)
		return nil
	}

	code := enrollmentCode(f.data.ActivationURL)
	if code == "" {
		slog.Warn("Enrollment URL carries no code", "principal", f.req.PrincipalID)
		f.fail(msgAPIFailed)
		return nil
	}

	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return err
	}

	reply, err := svc.ProcessEnrollment(ctx, code, "")
	if err != nil {
		slog.Error("First enrollment phase failed", "principal", f.req.PrincipalID, "error", err)
		f.fail(msgAPIFailed)
		return nil
	}

	// pattern tokens are activated by the first call
	if f.req.Kind == tokens.KindGrIDsure {
		f.complete(msgActivated)
		return nil
	}

	image := reply.ChallengeImage()
	if image == "" {
		slog.Warn("First enrollment phase returned no challenge", "principal", f.req.PrincipalID, "result", reply.Result)
		f.fail(msgChallengeFailed)
		return nil
	}

	f.challenge(code, image)
	return nil
}

func (s *Service) answerChallenge(ctx context.Context, f *flow) error {
	f.advance(phaseChallengeIssued)

	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return err
	}

	reply, err := svc.ProcessEnrollment(ctx, f.req.ContinuationState, f.req.ChallengeResponse)
	if err != nil {
		slog.Error("Second enrollment phase failed", "principal", f.req.PrincipalID, "error", err)
		f.fail(msgAPIFailed)
		return nil
	}

	slog.Debug("Second enrollment phase", "principal", f.req.PrincipalID, "result", reply.Result)
	if !strings.EqualFold(reply.Result, bsidca.ResultSuccess) {
		f.fail(msgAPIFailed)
		return nil
	}
	f.complete(msgActivated)
	return nil
}

// enrollmentCode returns the code query parameter of an enrollment URL.
func enrollmentCode(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Query().Get("code")
}
