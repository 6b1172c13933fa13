package verification

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

type recordingSender struct {
	medium      domain.VerificationMedium
	destination string
	code        string
	err         error
}

func (s *recordingSender) Send(_ context.Context, medium domain.VerificationMedium, destination, code string) error {
	if s.err != nil {
		return s.err
	}
	s.medium = medium
	s.destination = destination
	s.code = code
	return nil
}

func TestIssueCodeFormat(t *testing.T) {
	sender := &recordingSender{}
	issuer := NewCodeIssuer(sender, logger.NewNop())

	sixDigits := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		challenge, err := issuer.Issue(context.Background(), "attempt-1", domain.VerificationMediumEmail, "admin@example.com")
		require.NoError(t, err)
		assert.Regexp(t, sixDigits, challenge.Code, "code must keep leading zeros")
		assert.Equal(t, challenge.Code, sender.code)
	}
}

func TestIssueDispatchesThroughSender(t *testing.T) {
	sender := &recordingSender{}
	issuer := NewCodeIssuer(sender, logger.NewNop())

	challenge, err := issuer.Issue(context.Background(), "attempt-7", domain.VerificationMediumSMS, "+233201234567")
	require.NoError(t, err)

	assert.Equal(t, "attempt-7", challenge.AttemptID)
	assert.Equal(t, domain.VerificationMediumSMS, challenge.Medium)
	assert.Equal(t, domain.VerificationMediumSMS, sender.medium)
	assert.Equal(t, "+233201234567", sender.destination)
	assert.False(t, challenge.IssuedAt.IsZero())
}

func TestIssueSurfacesSendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	issuer := NewCodeIssuer(sender, logger.NewNop())

	_, err := issuer.Issue(context.Background(), "attempt-1", domain.VerificationMediumEmail, "admin@example.com")
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	challenge := &domain.VerificationChallenge{Code: "042917"}

	assert.NoError(t, Check(challenge, "042917"))
	assert.ErrorIs(t, Check(challenge, "042918"), domain.ErrInvalidCode)
	assert.ErrorIs(t, Check(challenge, ""), domain.ErrInvalidCode)
	assert.ErrorIs(t, Check(nil, "042917"), domain.ErrInvalidCode)
}

func TestReissueInvalidatesPreviousCode(t *testing.T) {
	sender := &recordingSender{}
	issuer := NewCodeIssuer(sender, logger.NewNop())

	first, err := issuer.Issue(context.Background(), "attempt-1", domain.VerificationMediumEmail, "admin@example.com")
	require.NoError(t, err)

	var second domain.VerificationChallenge
	for {
		second, err = issuer.Issue(context.Background(), "attempt-1", domain.VerificationMediumEmail, "admin@example.com")
		require.NoError(t, err)
		if second.Code != first.Code {
			break
		}
	}

	// Хранится только последний challenge: старый код больше не проходит.
	assert.ErrorIs(t, Check(&second, first.Code), domain.ErrInvalidCode)
	assert.NoError(t, Check(&second, second.Code))
}
