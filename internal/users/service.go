// Package users manages principals in the backend user directory.
package users

import (
	"context"
	"log/slog"
	"strings"

	"github.com/EternisAI/silo-enroll/internal/bsidca"
)

const defaultRealm = "default"

type User struct {
	Username      string `json:"userName"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	Email         string `json:"email,omitempty"`
	Mobile        string `json:"mobile,omitempty"`
	Telephone     string `json:"telephone,omitempty"`
	Extension     string `json:"extension,omitempty"`
	Address       string `json:"address,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	Zip           string `json:"zip,omitempty"`
	Country       string `json:"country,omitempty"`
	ContainerName string `json:"containerName,omitempty"`
	Locked        bool   `json:"locked"`
}

// UniqueName composes the backend username of a principal in realm. The
// "default" realm, in any case, maps to the bare username.
func UniqueName(realm, delimiter, username string) string {
	if realm == "" || strings.EqualFold(realm, defaultRealm) {
		return username
	}
	return realm + delimiter + username
}

type Service struct {
	source bsidca.Source
}

func NewService(source bsidca.Source) *Service {
	return &Service{source: source}
}

// Get returns nil when the user does not exist or the lookup fails.
func (s *Service) Get(ctx context.Context, username, organization string) (*User, error) {
	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	record, err := svc.GetUser(ctx, username, organization)
	if err != nil {
		slog.Error("Failed to get user", "username", username, "organization", organization, "error", err)
		return nil, nil
	}
	if record == nil {
		return nil, nil
	}
	return fromRecord(record), nil
}

func (s *Service) Create(ctx context.Context, user User, organization string) (bool, error) {
	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return false, err
	}

	slog.Info("Creating user", "username", user.Username, "organization", organization)
	ok, err := svc.AddUser(ctx, toRecord(user), organization)
	if err != nil {
		slog.Error("Failed to create user", "username", user.Username, "organization", organization, "error", err)
		return false, nil
	}
	return ok, nil
}

// Remove deletes the user. Their tokens go back to inventory.
func (s *Service) Remove(ctx context.Context, username, organization string) (bool, error) {
	svc, err := s.source.Acquire(ctx)
	if err != nil {
		return false, err
	}

	slog.Info("Deleting user", "username", username, "organization", organization)
	result, err := svc.RemoveUser(ctx, username, organization)
	if err != nil {
		slog.Error("Failed to delete user", "username", username, "organization", organization, "error", err)
		return false, nil
	}
	return strings.EqualFold(result, bsidca.UserDeleted), nil
}

func fromRecord(r *bsidca.UserRecord) *User {
	return &User{
		Username:      r.UserName,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Email:         r.Email,
		Mobile:        r.Mobile,
		Telephone:     r.Telephone,
		Extension:     r.Extension,
		Address:       r.Address,
		City:          r.City,
		State:         r.State,
		Zip:           r.Zip,
		Country:       r.Country,
		ContainerName: r.ContainerName,
		Locked:        r.Locked,
	}
}

func toRecord(u User) bsidca.UserRecord {
	return bsidca.UserRecord{
		UserName:      u.Username,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Address:       u.Address,
		City:          u.City,
		State:         u.State,
		Zip:           u.Zip,
		Country:       u.Country,
		Email:         u.Email,
		Telephone:     u.Telephone,
		Extension:     u.Extension,
		Mobile:        u.Mobile,
		ContainerName: u.ContainerName,
		Locked:        u.Locked,
	}
}
