package service

import (
	"github.com/noah-isme/campus-records-api/internal/models"
)

// AccessPolicy centralises who may create, view, mutate and review records.
type AccessPolicy struct {
	reviewers map[models.RecordKind][]models.UserRole
}

// NewAccessPolicy builds a policy. Kinds absent from reviewers are reviewable by tutors and admins.
func NewAccessPolicy(reviewers map[models.RecordKind][]models.UserRole) *AccessPolicy {
	copied := make(map[models.RecordKind][]models.UserRole, len(reviewers))
	for kind, roles := range reviewers {
		copied[kind] = append([]models.UserRole(nil), roles...)
	}
	return &AccessPolicy{reviewers: copied}
}

var defaultReviewerRoles = []models.UserRole{models.RoleTutor, models.RoleAdmin}

// CanCreate reports whether the role may submit records.
func (p *AccessPolicy) CanCreate(role models.UserRole) bool {
	return role == models.RoleStudent
}

// CanMutate allows the owner while the record is pending, or an admin using the explicit override.
func (p *AccessPolicy) CanMutate(actor *models.JWTClaims, record *models.Record, adminOverride bool) bool {
	if actor == nil || record == nil {
		return false
	}
	if adminOverride {
		return p.CanPurge(actor.Role)
	}
	return record.OwnerID == actor.UserID && record.Status == models.RecordStatusPending
}

// CanPurge reports whether the role may delete records regardless of owner and status.
func (p *AccessPolicy) CanPurge(role models.UserRole) bool {
	return role == models.RoleAdmin
}

// CanReview reports whether the role may decide records of the kind.
func (p *AccessPolicy) CanReview(role models.UserRole, kind models.RecordKind) bool {
	roles, ok := p.reviewers[kind]
	if !ok {
		roles = defaultReviewerRoles
	}
	for _, allowed := range roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// CanView allows the owner and any role that reviews the record's kind.
func (p *AccessPolicy) CanView(actor *models.JWTClaims, record *models.Record) bool {
	if actor == nil || record == nil {
		return false
	}
	return record.OwnerID == actor.UserID || p.CanReview(actor.Role, record.Kind)
}
