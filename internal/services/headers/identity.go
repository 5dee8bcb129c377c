package headers

import (
	"context"
	"errors"
	"strings"

	"github.com/Egham-7/custom-endpoint-proxy/internal/config"
	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

var errNoEmail = errors.New("user has no email")

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// IdentityStrategy substitutes the requesting user's email for Placeholder.
// Without a Fallback a failed lookup aborts resolution with UserLookupFailed;
// with one, Fallback becomes the whole header value.
type IdentityStrategy struct {
	Header      string
	Users       UserFinder
	Placeholder string
	Fallback    *string
}

func (s *IdentityStrategy) Resolve(ctx context.Context, template, userID string) (string, error) {
	if !strings.Contains(template, s.Placeholder) {
		fiberlog.Debugf("Header %s has no %s placeholder, expanding environment only", s.Header, s.Placeholder)
		return config.ExtractEnvVariable(template), nil
	}

	email, err := s.lookupEmail(ctx, userID)
	if err != nil {
		if s.Fallback == nil {
			return "", models.NewUserLookupError(s.Header, err)
		}
		fiberlog.Warnf("Identity lookup for header %s failed, using fallback: %v", s.Header, err)
		return *s.Fallback, nil
	}

	// only the template text is env-expanded, never the placeholder or the email
	parts := strings.Split(template, s.Placeholder)
	for i, part := range parts {
		parts[i] = config.ExtractEnvVariable(part)
	}
	return strings.Join(parts, email), nil
}

func (s *IdentityStrategy) lookupEmail(ctx context.Context, userID string) (string, error) {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil || user.Email == "" {
		return "", errNoEmail
	}
	return user.Email, nil
}
