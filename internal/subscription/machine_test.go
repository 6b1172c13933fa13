package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/internal/methods"
	"github.com/Dhoini/Subscription-microservice/internal/pricing"
	"github.com/Dhoini/Subscription-microservice/internal/repository"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const testCode = "042917"

// stubIssuer выпускает фиксированный код без реальной отправки.
type stubIssuer struct {
	code            string
	issued          int
	lastDestination string
	lastMedium      domain.VerificationMedium
}

func (s *stubIssuer) Issue(_ context.Context, attemptID string, medium domain.VerificationMedium, destination string) (domain.VerificationChallenge, error) {
	s.issued++
	s.lastDestination = destination
	s.lastMedium = medium
	return domain.VerificationChallenge{
		Code:      s.code,
		IssuedAt:  testNow,
		Medium:    medium,
		AttemptID: attemptID,
	}, nil
}

// recordingNotifier собирает уведомления синхронно.
type recordingNotifier struct {
	events []domain.NotificationEvent
}

func (n *recordingNotifier) NotifyOwner(_ context.Context, sub domain.Subscription) domain.NotificationEvent {
	event := domain.NotificationEvent{From: sub.AdminID, To: "owner"}
	n.events = append(n.events, event)
	return event
}

// staleOnceRepo отклоняет первую запись как устаревшую.
type staleOnceRepo struct {
	repository.SubscriptionRepository
	failed bool
}

func (r *staleOnceRepo) Save(ctx context.Context, sub domain.Subscription, expectedVersion int64) (domain.Subscription, error) {
	if !r.failed {
		r.failed = true
		return domain.Subscription{}, repository.ErrStaleVersion
	}
	return r.SubscriptionRepository.Save(ctx, sub, expectedVersion)
}

type machineFixture struct {
	machine  *StateMachine
	subs     repository.SubscriptionRepository
	attempts repository.AttemptRepository
	issuer   *stubIssuer
	notifier *recordingNotifier
}

func newMachineFixture(t *testing.T, subs repository.SubscriptionRepository) *machineFixture {
	t.Helper()

	log := logger.NewNop()
	if subs == nil {
		subs = repository.NewInMemorySubscriptionRepository(log)
	}

	issuer := &stubIssuer{code: testCode}
	notifier := &recordingNotifier{}
	attempts := repository.NewInMemoryAttemptRepository()
	destinations := repository.NewInMemoryDestinationStore(map[string]map[string]string{
		"paypal": {"paypalEmail": "owner@business.example"},
	})

	machine := NewStateMachine(
		pricing.NewCatalog(pricing.DefaultPlans(testNow), log),
		methods.NewRegistry(methods.DefaultSpecs()),
		issuer,
		subs,
		attempts,
		destinations,
		notifier,
		nil,
		log,
	).WithClock(func() time.Time { return testNow })

	return &machineFixture{
		machine:  machine,
		subs:     subs,
		attempts: attempts,
		issuer:   issuer,
		notifier: notifier,
	}
}

// runToVerifying проводит администратора до шага ввода кода.
func (f *machineFixture) runToVerifying(t *testing.T, adminID string) domain.UpgradeAttempt {
	t.Helper()
	ctx := context.Background()

	_, err := f.machine.InitiateUpgrade(ctx, adminID, "premium", domain.BillingCycleMonthly)
	require.NoError(t, err)

	_, err = f.machine.SelectMethod(ctx, adminID, "paypal")
	require.NoError(t, err)

	attempt, err := f.machine.SubmitDetails(ctx, adminID, map[string]string{"paypalEmail": "admin@example.com"})
	require.NoError(t, err)

	return attempt
}

func TestUpgradeHappyPath(t *testing.T) {
	f := newMachineFixture(t, nil)
	ctx := context.Background()

	attempt, err := f.machine.InitiateUpgrade(ctx, "admin-1", "premium", domain.BillingCycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, domain.UpgradeStateChoosingMethod, attempt.State)
	assert.Equal(t, 59.99, attempt.Amount)

	attempt, err = f.machine.SelectMethod(ctx, "admin-1", "paypal")
	require.NoError(t, err)
	assert.Equal(t, domain.UpgradeStateEnteringDetails, attempt.State)
	assert.Equal(t, domain.VerificationMediumEmail, attempt.Medium)

	attempt, err = f.machine.SubmitDetails(ctx, "admin-1", map[string]string{"paypalEmail": "admin@example.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.UpgradeStateVerifying, attempt.State)
	assert.Equal(t, "admin@example.com", f.issuer.lastDestination)

	sub, err := f.machine.SubmitVerification(ctx, "admin-1", testCode)
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "premium", sub.PlanID)
	assert.Equal(t, domain.BillingCycleMonthly, sub.BillingCycle)
	assert.Equal(t, 59.99, sub.Amount)
	assert.Equal(t, testNow, sub.StartDate)
	assert.Equal(t, testNow.Add(30*24*time.Hour), sub.EndDate)
	assert.Equal(t, sub.EndDate, sub.NextPaymentDate)
	assert.True(t, sub.AutoRenew)

	require.Len(t, sub.PaymentHistory, 1)
	record := sub.PaymentHistory[0]
	assert.Equal(t, attempt.ID, record.AttemptID)
	assert.Equal(t, domain.PaymentStatusCompleted, record.Status)
	assert.Equal(t, "paypal", record.Method)
	assert.Equal(t, "admin@example.com", record.RawDetails["paypalEmail"])
	assert.Equal(t, "owner@business.example", record.OwnerConfigSnapshot["paypalEmail"])

	require.NotNil(t, sub.PaymentDestination)
	assert.Equal(t, "paypal", sub.PaymentDestination.Method)
	assert.Equal(t, "admin@example.com", sub.PaymentDestination.AdminPaymentDetails["paypalEmail"])

	// Попытка завершена, администратор снова в idle.
	snapshot, err := f.machine.GetSubscription(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.UpgradeStateIdle, snapshot.UpgradeState)
	assert.Nil(t, snapshot.Attempt)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "admin-1", f.notifier.events[0].From)
}

func TestWrongCodeKeepsVerifying(t *testing.T) {
	f := newMachineFixture(t, nil)
	ctx := context.Background()

	f.runToVerifying(t, "admin-1")

	_, err := f.machine.SubmitVerification(ctx, "admin-1", "000000")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	snapshot, err := f.machine.GetSubscription(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.UpgradeStateVerifying, snapshot.UpgradeState)
	assert.Equal(t, domain.SubscriptionStatusTrial, snapshot.Subscription.Status)
	assert.Empty(t, snapshot.Subscription.PaymentHistory)

	// Число попыток не ограничено: верный код проходит после неверных.
	_, err = f.machine.SubmitVerification(ctx, "admin-1", "999999")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	sub, err := f.machine.SubmitVerification(ctx, "admin-1", testCode)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
}

func TestMissingFieldsStaysEnteringDetails(t *testing.T) {
	f := newMachineFixture(t, nil)
	ctx := context.Background()

	_, err := f.machine.InitiateUpgrade(ctx, "admin-1", "standard", domain.BillingCycleAnnually)
	require.NoError(t, err)
	_, err = f.machine.SelectMethod(ctx, "admin-1", "bank_transfer")
	require.NoError(t, err)

	_, err = f.machine.SubmitDetails(ctx, "admin-1", map[string]string{"bankName": "First Bank"})
	require.ErrorIs(t, err, domain.ErrMissingFields)

	var missing *domain.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t, []string{"accountName", "accountNumber"}, missing.Fields)

	snapshot, err := f.machine.GetSubscription(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.UpgradeStateEnteringDetails, snapshot.UpgradeState)
	assert.Zero(t, f.issuer.issued)
}

func TestResubmitDetailsReissuesCode(t *testing.T) {
	f := newMachineFixture(t, nil)
	ctx := context.Background()

	f.runToVerifying(t, "admin-1")
	assert.Equal(t, 1, f.issuer.issued)

	// Повторная подача реквизитов с шага verifying выпускает новый код.
	_, err := f.machine.SubmitDetails(ctx, "admin-1", map[string]string{"paypalEmail": "other@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.issuer.issued)
	assert.Equal(t, "other@example.com", f.issuer.lastDestination)
}

func TestDoubleInitiateRejected(t *testing.T) {
	f := newMachineFixture(t, nil)
	ctx := context.Background()

	_, err := f.machine.InitiateUpgrade(ctx, "admin-1", "basic", domain.BillingCycleWeekly)
	require.NoError(t, err)

	_, err = f.machine.InitiateUpgrade(ctx, "admin-1", "premium", domain.BillingCycleMonthly)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, string(domain.UpgradeStateChoosingMethod), invalid.CurrentState)
}

func TestEventsRejectedInWrongState(t *testing.T) {
	f := newMachineFixture(t, nil)
	ctx := context.Background()

	// Без попытки администратор в idle.
	_, err := f.machine.SelectMethod(ctx, "admin-1", "paypal")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, string(domain.UpgradeStateIdle), invalid.CurrentState)

	_, err = f.machine.SubmitVerification(ctx, "admin-1", testCode)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Подтверждение до ввода реквизитов.
	_, err = f.machine.InitiateUpgrade(ctx, "admin-1", "basic", domain.BillingCycleWeekly)
	require.NoError(t, err)
	_, err = f.machine.SubmitVerification(ctx, "admin-1", testCode)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestInitiateUnknownPlanRecoverable(t *testing.T) {
	f := newMachineFixture(t, nil)
	ctx := context.Background()

	_, err := f.machine.InitiateUpgrade(ctx, "admin-1", "enterprise", domain.BillingCycleMonthly)
	require.ErrorIs(t, err, domain.ErrUnknownPlan)

	// Попытка не создана, повтор с существующим планом проходит.
	_, err = f.machine.InitiateUpgrade(ctx, "admin-1", "premium", domain.BillingCycleMonthly)
	assert.NoError(t, err)
}

func TestSettlementExactlyOnce(t *testing.T) {
	f := newMachineFixture(t, nil)
	ctx := context.Background()

	attempt := f.runToVerifying(t, "admin-1")

	sub, err := f.machine.SubmitVerification(ctx, "admin-1", testCode)
	require.NoError(t, err)
	require.Len(t, sub.PaymentHistory, 1)

	// Повтор расчета той же попытки не добавляет второй платеж.
	attempt.State = domain.UpgradeStateProcessing
	require.NoError(t, f.attempts.Put(ctx, attempt))

	sub, err = f.machine.ResumeProcessing(ctx, "admin-1")
	require.NoError(t, err)
	assert.Len(t, sub.PaymentHistory, 1)
	assert.Len(t, f.notifier.events, 1)
}

func TestResumeAfterCallerLoss(t *testing.T) {
	f := newMachineFixture(t, nil)
	ctx := context.Background()

	attempt := f.runToVerifying(t, "admin-1")

	// Вызывающий исчез сразу после подтверждения: попытка зависла
	// в processing, платеж еще не записан.
	attempt.State = domain.UpgradeStateProcessing
	require.NoError(t, f.attempts.Put(ctx, attempt))

	sub, err := f.machine.ResumeProcessing(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	require.Len(t, sub.PaymentHistory, 1)
	assert.Equal(t, attempt.ID, sub.PaymentHistory[0].AttemptID)
}

func TestStaleSnapshotKeepsAttemptResumable(t *testing.T) {
	log := logger.NewNop()
	inner := repository.NewInMemorySubscriptionRepository(log)
	flaky := &staleOnceRepo{SubscriptionRepository: inner}
	f := newMachineFixture(t, flaky)
	ctx := context.Background()

	f.runToVerifying(t, "admin-1")

	_, err := f.machine.SubmitVerification(ctx, "admin-1", testCode)
	require.ErrorIs(t, err, domain.ErrStaleSnapshot)

	snapshot, err := f.machine.GetSubscription(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.UpgradeStateProcessing, snapshot.UpgradeState)
	assert.Empty(t, snapshot.Subscription.PaymentHistory)

	// Возобновление перечитывает снимок и завершает расчет.
	sub, err := f.machine.ResumeProcessing(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.Len(t, sub.PaymentHistory, 1)
}

func TestCancelKeepsEndDate(t *testing.T) {
	f := newMachineFixture(t, nil)
	ctx := context.Background()

	f.runToVerifying(t, "admin-1")
	active, err := f.machine.SubmitVerification(ctx, "admin-1", testCode)
	require.NoError(t, err)

	cancelled, err := f.machine.Cancel(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCancelled, cancelled.Status)
	assert.False(t, cancelled.AutoRenew)
	assert.Equal(t, active.EndDate, cancelled.EndDate)
}

func TestCancelRequiresActive(t *testing.T) {
	f := newMachineFixture(t, nil)
	ctx := context.Background()

	// Создаем trial чтением.
	_, err := f.machine.GetSubscription(ctx, "admin-1")
	require.NoError(t, err)

	_, err = f.machine.Cancel(ctx, "admin-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestGetSubscriptionCreatesTrial(t *testing.T) {
	f := newMachineFixture(t, nil)

	snapshot, err := f.machine.GetSubscription(context.Background(), "new-admin")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusTrial, snapshot.Subscription.Status)
	assert.Equal(t, domain.UpgradeStateIdle, snapshot.UpgradeState)
	assert.EqualValues(t, 1, snapshot.Subscription.Version)
}

func TestSnapshotRedactsChallengeCode(t *testing.T) {
	f := newMachineFixture(t, nil)
	ctx := context.Background()

	f.runToVerifying(t, "admin-1")

	snapshot, err := f.machine.GetSubscription(ctx, "admin-1")
	require.NoError(t, err)
	require.NotNil(t, snapshot.Attempt)
	require.NotNil(t, snapshot.Attempt.Challenge)
	assert.Empty(t, snapshot.Attempt.Challenge.Code)
}
