// Package provisioning submits provisioning requests and correlates them with
// the task the backend creates, by polling the owner's task list.
package provisioning

import (
	"context"
	"log/slog"
	"strings"

	"github.com/EternisAI/silo-enroll/internal/bsidca"
	"github.com/EternisAI/silo-enroll/internal/tokens"
)

type Service struct {
	source bsidca.Source
	cfg    Config
}

func NewService(source bsidca.Source, cfg Config) *Service {
	return &Service{
		source: source,
		cfg:    cfg.withDefaults(),
	}
}

// Tasks lists the first page of provisioning tasks for owner in backend
// order. Remote and decode failures yield an empty list.
func (s *Service) Tasks(ctx context.Context, owner, organization string) ([]Task, error) {
	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return s.tasks(ctx, svc, owner, organization), nil
}

func (s *Service) tasks(ctx context.Context, svc bsidca.Service, owner, organization string) []Task {
	doc, err := svc.GetProvisioningTasksForUser(ctx, bsidca.TaskQuery{
		Owner:        owner,
		Organization: organization,
		StartRecord:  0,
		PageSize:     s.cfg.PageSize,
	})
	if err != nil {
		slog.Error("Failed to fetch provisioning tasks", "owner", owner, "organization", organization, "error", err)
		return []Task{}
	}

	rows := doc.Rows(taskRow)
	tasks := make([]Task, 0, len(rows))
	for _, row := range rows {
		id, err := row.Int("taskid")
		if err != nil {
			slog.Warn("Skipping provisioning task without a valid id", "owner", owner, "error", err)
			continue
		}
		tasks = append(tasks, Task{
			TaskID:      id,
			Owner:       owner,
			TokenOption: row.Text("tokenoption"),
			Status:      row.Text("status"),
		})
	}
	return tasks
}

// ResolveTaskID returns the id of the first task, in backend order, whose
// status equals status and whose token option equals the kind label.
// Both comparisons are case-sensitive. It returns 0 when nothing matches or
// the lookup fails.
func (s *Service) ResolveTaskID(ctx context.Context, owner, organization, status string, kind tokens.Kind) (int, error) {
	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	return s.resolve(ctx, svc, owner, organization, status, kind), nil
}

func (s *Service) resolve(ctx context.Context, svc bsidca.Service, owner, organization, status string, kind tokens.Kind) int {
	label := string(kind)
	for _, task := range s.tasks(ctx, svc, owner, organization) {
		if task.Status == status && task.TokenOption == label {
			slog.Debug("Resolved provisioning task", "owner", owner, "task_id", task.TaskID, "kind", label)
			return task.TaskID
		}
	}

	slog.Info("No provisioning task matched", "owner", owner, "organization", organization, "status", status, "kind", label)
	return 0
}

// Provision submits a provisioning request for owner and resolves the
// resulting active task. A failed submission yields 0.
func (s *Service) Provision(ctx context.Context, owner, organization string, kind tokens.Kind) (int, error) {
	option, err := kind.WireOption()
	if err != nil {
		return 0, err
	}

	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return 0, err
	}

	req := bsidca.ProvisionRequest{
		Usernames:    []string{owner},
		Organization: organization,
		Description:  s.cfg.Description,
		TokenOption:  option,
	}

	if kind == tokens.KindGrIDsure {
		result, err := svc.ProvisionUsersGrIDsureTokens(ctx, req)
		if err != nil {
			slog.Error("Failed to provision pattern token", "owner", owner, "organization", organization, "error", err)
			return 0, nil
		}
		slog.Debug("Pattern token provisioning submitted", "owner", owner, "result", result)
	} else {
		results, err := svc.ProvisionUsers(ctx, req)
		if err != nil {
			slog.Error("Failed to provision token", "owner", owner, "organization", organization, "kind", kind, "error", err)
			return 0, nil
		}
		emailSent := len(results) > 0 && strings.EqualFold(results[0], bsidca.ProvisioningEmailSent)
		slog.Debug("Token provisioning submitted", "owner", owner, "kind", kind, "email_sent", emailSent)
	}

	return s.resolve(ctx, svc, owner, organization, StatusActive, kind), nil
}
