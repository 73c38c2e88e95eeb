package personality

import (
	"strings"
	"unicode/utf8"

	"ai-bot-network/backend/internal/models"
	apperrors "ai-bot-network/backend/pkg/errors"
)

// Field limits for bot creation
const (
	MaxNameLength        = 50
	MaxFocusLength       = 200
	MaxDirectiveLength   = 500
	MaxInterests         = 10
	MaxAvatarDescription = 300
)

// ValidateCreate rejects creation requests that no tier may accept. Trait
// values are never rejected; NewBot clamps them.
func ValidateCreate(req models.CreateBotRequest) error {
	if strings.TrimSpace(req.OwnerID) == "" {
		return apperrors.Validation("ownerId", "owner id is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return apperrors.Validation("name", "name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return apperrors.Validation("name", "name is too long")
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Focus)) > MaxFocusLength {
		return apperrors.Validation("focus", "focus is too long")
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.CoreDirective)) > MaxDirectiveLength {
		return apperrors.Validation("coreDirective", "core directive is too long")
	}
	if len(req.Interests) > MaxInterests {
		return apperrors.Validation("interests", "too many interests")
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.AvatarDescription)) > MaxAvatarDescription {
		return apperrors.Validation("avatarDescription", "avatar description is too long")
	}
	return nil
}

// ValidateDirective applies the directive length limit to training requests
func ValidateDirective(directive string) error {
	if utf8.RuneCountInString(strings.TrimSpace(directive)) > MaxDirectiveLength {
		return apperrors.Validation("coreDirective", "core directive is too long")
	}
	return nil
}
