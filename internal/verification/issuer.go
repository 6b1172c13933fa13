package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

// Issuer выпускает одноразовые коды подтверждения платежа.
// Код привязывается к одной попытке апгрейда; повторный выпуск для той же
// попытки делает предыдущий код недействительным (машина состояний хранит
// ровно один challenge на попытку).
type Issuer interface {
	Issue(ctx context.Context, attemptID string, medium domain.VerificationMedium, destination string) (domain.VerificationChallenge, error)
}

// CodeIssuer стандартная реализация: равномерно случайный 6-значный код,
// отправляемый через Sender соответствующего канала.
type CodeIssuer struct {
	sender Sender
	log    *logger.Logger
}

// NewCodeIssuer создает новый выпускающий компонент.
func NewCodeIssuer(sender Sender, log *logger.Logger) *CodeIssuer {
	return &CodeIssuer{
		sender: sender,
		log:    log,
	}
}

// Issue генерирует код 000000–999999 (ведущие нули сохраняются),
// фиксирует время выпуска и отправляет код по указанному каналу.
// Ошибка отправки возвращается вызывающему: без кода администратор
// не сможет продолжить, поэтому глотать ее нельзя.
func (i *CodeIssuer) Issue(ctx context.Context, attemptID string, medium domain.VerificationMedium, destination string) (domain.VerificationChallenge, error) {
	code, err := generateCode()
	if err != nil {
		return domain.VerificationChallenge{}, fmt.Errorf("failed to generate verification code: %w", err)
	}

	challenge := domain.VerificationChallenge{
		Code:      code,
		IssuedAt:  time.Now(),
		Medium:    medium,
		AttemptID: attemptID,
	}

	if err := i.sender.Send(ctx, medium, destination, code); err != nil {
		i.log.Errorw("Failed to dispatch verification code", "attemptID", attemptID, "medium", medium, "error", err)
		return domain.VerificationChallenge{}, fmt.Errorf("failed to dispatch verification code: %w", err)
	}

	i.log.Infow("Verification code issued", "attemptID", attemptID, "medium", medium)
	return challenge, nil
}

// Check сверяет введенный код с последним выпущенным для попытки.
// Сравнение — точное строковое совпадение. Срок жизни кода и лимит
// попыток не вводятся: наблюдаемое поведение исходной системы их
// не содержит.
func Check(challenge *domain.VerificationChallenge, submittedCode string) error {
	if challenge == nil || challenge.Code != submittedCode {
		return domain.ErrInvalidCode
	}
	return nil
}

// generateCode возвращает равномерно случайную 6-значную строку.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
