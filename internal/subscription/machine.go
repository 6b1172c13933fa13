package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/internal/methods"
	"github.com/Dhoini/Subscription-microservice/internal/metrics"
	"github.com/Dhoini/Subscription-microservice/internal/pricing"
	"github.com/Dhoini/Subscription-microservice/internal/repository"
	"github.com/Dhoini/Subscription-microservice/internal/verification"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

// События машины состояний апгрейда (для ошибок недопустимых переходов).
const (
	eventInitiateUpgrade    = "initiateUpgrade"
	eventSelectMethod       = "selectMethod"
	eventSubmitDetails      = "submitDetails"
	eventSubmitVerification = "submitVerification"
	eventResumeProcessing   = "resumeProcessing"
)

// OwnerNotifier отправляет владельцу уведомление о рассчитанном платеже.
type OwnerNotifier interface {
	NotifyOwner(ctx context.Context, sub domain.Subscription) domain.NotificationEvent
}

// Snapshot снимок подписки вместе с состоянием мастера апгрейда.
// Состояние idle означает отсутствие текущей попытки.
type Snapshot struct {
	Subscription domain.Subscription    `json:"subscription"`
	UpgradeState domain.UpgradeState    `json:"upgrade_state"`
	Attempt      *domain.UpgradeAttempt `json:"attempt,omitempty"`
}

// StateMachine проводит администратора через мастер апгрейда подписки:
// выбор плана, выбор метода оплаты, ввод реквизитов, подтверждение кодом
// и расчет платежа. На администратора допускается одна попытка одновременно;
// событие в неверном состоянии отклоняется и ничего не меняет.
type StateMachine struct {
	catalog      *pricing.Catalog
	registry     *methods.Registry
	issuer       verification.Issuer
	subs         repository.SubscriptionRepository
	attempts     repository.AttemptRepository
	destinations repository.DestinationStore
	notifier     OwnerNotifier
	metrics      metrics.SubscriptionMetrics
	log          *logger.Logger

	// now внедряется для детерминированных тестов дат.
	now func() time.Time
}

// NewStateMachine создает машину состояний апгрейда.
func NewStateMachine(
	catalog *pricing.Catalog,
	registry *methods.Registry,
	issuer verification.Issuer,
	subs repository.SubscriptionRepository,
	attempts repository.AttemptRepository,
	destinations repository.DestinationStore,
	notifier OwnerNotifier,
	m metrics.SubscriptionMetrics,
	log *logger.Logger,
) *StateMachine {
	return &StateMachine{
		catalog:      catalog,
		registry:     registry,
		issuer:       issuer,
		subs:         subs,
		attempts:     attempts,
		destinations: destinations,
		notifier:     notifier,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

// WithClock заменяет источник времени. Используется в тестах.
func (sm *StateMachine) WithClock(now func() time.Time) *StateMachine {
	sm.now = now
	return sm
}

// GetSubscription возвращает снимок подписки администратора и состояние
// мастера. Для нового администратора создается подписка в статусе trial.
func (sm *StateMachine) GetSubscription(ctx context.Context, adminID string) (Snapshot, error) {
	sub, err := sm.getOrCreate(ctx, adminID)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		Subscription: sub,
		UpgradeState: domain.UpgradeStateIdle,
	}

	attempt, err := sm.attempts.Get(ctx, adminID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return snapshot, nil
		}
		return Snapshot{}, fmt.Errorf("failed to load upgrade attempt: %w", err)
	}

	snapshot.UpgradeState = attempt.State
	snapshot.Attempt = redactChallenge(attempt)
	return snapshot, nil
}

// InitiateUpgrade начинает попытку апгрейда на указанный план и период.
// Пока попытка существует, новая не допускается. Цена фиксируется в момент
// начала попытки; подписка на этом шаге не изменяется.
func (sm *StateMachine) InitiateUpgrade(ctx context.Context, adminID, planID string, cycle domain.BillingCycle) (domain.UpgradeAttempt, error) {
	if existing, err := sm.attempts.Get(ctx, adminID); err == nil {
		sm.incInvalidTransition(eventInitiateUpgrade)
		return domain.UpgradeAttempt{}, domain.NewInvalidTransition(string(existing.State), eventInitiateUpgrade)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.UpgradeAttempt{}, fmt.Errorf("failed to load upgrade attempt: %w", err)
	}

	price, err := sm.catalog.GetPrice(planID, cycle)
	if err != nil {
		return domain.UpgradeAttempt{}, err
	}

	now := sm.now()
	attempt := domain.UpgradeAttempt{
		ID:           uuid.NewString(),
		AdminID:      adminID,
		PlanID:       planID,
		BillingCycle: cycle,
		Amount:       price,
		State:        domain.UpgradeStateChoosingMethod,
		StartedAt:    now,
		UpdatedAt:    now,
	}

	if err := sm.attempts.Put(ctx, attempt); err != nil {
		return domain.UpgradeAttempt{}, fmt.Errorf("failed to store upgrade attempt: %w", err)
	}

	if sm.metrics != nil {
		sm.metrics.IncUpgradeStarted(planID)
	}
	sm.log.Infow("Upgrade attempt started",
		"adminID", adminID, "attemptID", attempt.ID, "planID", planID, "cycle", cycle, "amount", price)

	return attempt, nil
}

// SelectMethod выбирает метод оплаты для текущей попытки.
// Допустимо только в состоянии choosing_method.
func (sm *StateMachine) SelectMethod(ctx context.Context, adminID, methodID string) (domain.UpgradeAttempt, error) {
	attempt, err := sm.requireState(ctx, adminID, eventSelectMethod, domain.UpgradeStateChoosingMethod)
	if err != nil {
		return domain.UpgradeAttempt{}, err
	}

	spec, err := sm.registry.GetSpec(methodID)
	if err != nil {
		return domain.UpgradeAttempt{}, err
	}

	attempt.MethodID = methodID
	attempt.Medium = spec.VerificationMedium
	attempt.State = domain.UpgradeStateEnteringDetails

	if err := sm.attempts.Put(ctx, attempt); err != nil {
		return domain.UpgradeAttempt{}, fmt.Errorf("failed to store upgrade attempt: %w", err)
	}

	sm.log.Infow("Payment method selected", "adminID", adminID, "attemptID", attempt.ID, "methodID", methodID)
	return attempt, nil
}

// SubmitDetails принимает реквизиты администратора для выбранного метода.
// При отсутствии обязательных полей попытка остается в entering_details.
// При успехе выпускается код подтверждения и попытка переходит в verifying;
// повторная подача реквизитов выпускает новый код, делая прежний
// недействительным.
func (sm *StateMachine) SubmitDetails(ctx context.Context, adminID string, fields map[string]string) (domain.UpgradeAttempt, error) {
	attempt, err := sm.requireState(ctx, adminID, eventSubmitDetails,
		domain.UpgradeStateEnteringDetails, domain.UpgradeStateVerifying)
	if err != nil {
		return domain.UpgradeAttempt{}, err
	}

	if err := sm.registry.Validate(attempt.MethodID, fields); err != nil {
		return domain.UpgradeAttempt{}, err
	}

	challenge, err := sm.issuer.Issue(ctx, attempt.ID, attempt.Medium, codeDestination(attempt.Medium, fields))
	if err != nil {
		// Без кода администратор не сможет подтвердить платеж,
		// попытка остается на текущем шаге.
		return domain.UpgradeAttempt{}, err
	}

	attempt.Fields = cloneFields(fields)
	attempt.Challenge = &challenge
	attempt.State = domain.UpgradeStateVerifying

	if err := sm.attempts.Put(ctx, attempt); err != nil {
		return domain.UpgradeAttempt{}, fmt.Errorf("failed to store upgrade attempt: %w", err)
	}

	sm.log.Infow("Payment details accepted, verification code issued",
		"adminID", adminID, "attemptID", attempt.ID, "medium", attempt.Medium)
	return attempt, nil
}

// SubmitVerification сверяет код подтверждения. Неверный код оставляет
// попытку в verifying и возвращает ErrInvalidCode без ограничения числа
// попыток. Верный код переводит попытку в processing и запускает расчет.
func (sm *StateMachine) SubmitVerification(ctx context.Context, adminID, code string) (domain.Subscription, error) {
	attempt, err := sm.requireState(ctx, adminID, eventSubmitVerification, domain.UpgradeStateVerifying)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := verification.Check(attempt.Challenge, code); err != nil {
		if sm.metrics != nil {
			sm.metrics.IncVerificationFailed()
		}
		sm.log.Warnw("Verification code rejected", "adminID", adminID, "attemptID", attempt.ID)
		return domain.Subscription{}, err
	}

	attempt.State = domain.UpgradeStateProcessing
	if err := sm.attempts.Put(ctx, attempt); err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to store upgrade attempt: %w", err)
	}

	return sm.settle(ctx, attempt)
}

// ResumeProcessing возобновляет расчет попытки, застрявшей в processing
// (например, если вызывающий исчез между подтверждением и расчетом).
// Операция идемпотентна: уже записанный платеж не дублируется.
func (sm *StateMachine) ResumeProcessing(ctx context.Context, adminID string) (domain.Subscription, error) {
	attempt, err := sm.requireState(ctx, adminID, eventResumeProcessing, domain.UpgradeStateProcessing)
	if err != nil {
		return domain.Subscription{}, err
	}

	return sm.settle(ctx, attempt)
}

// Cancel отменяет активную подписку. Статус становится cancelled,
// автопродление выключается; EndDate не изменяется — доступ сохраняется
// до конца оплаченного периода.
func (sm *StateMachine) Cancel(ctx context.Context, adminID string) (domain.Subscription, error) {
	sub, err := sm.subs.Get(ctx, adminID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Subscription{}, domain.NewInvalidTransition("none", "cancel")
		}
		return domain.Subscription{}, fmt.Errorf("failed to load subscription: %w", err)
	}

	if sub.Status != domain.SubscriptionStatusActive {
		sm.incInvalidTransition("cancel")
		return domain.Subscription{}, domain.NewInvalidTransition(string(sub.Status), "cancel")
	}

	sub.Status = domain.SubscriptionStatusCancelled
	sub.AutoRenew = false

	saved, err := sm.subs.Save(ctx, sub, sub.Version)
	if err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return domain.Subscription{}, domain.ErrStaleSnapshot
		}
		return domain.Subscription{}, fmt.Errorf("failed to save subscription: %w", err)
	}

	sm.log.Infow("Subscription cancelled", "adminID", adminID, "endDate", saved.EndDate)
	return saved, nil
}

// settle выполняет расчет платежа ровно один раз для попытки.
// Идемпотентность обеспечивается идентификатором попытки в истории платежей:
// повторный расчет уже записанной попытки ничего не добавляет.
// При конкурентном изменении подписки возвращается ErrStaleSnapshot,
// попытка остается в processing и может быть возобновлена.
func (sm *StateMachine) settle(ctx context.Context, attempt domain.UpgradeAttempt) (domain.Subscription, error) {
	sub, err := sm.getOrCreate(ctx, attempt.AdminID)
	if err != nil {
		return domain.Subscription{}, err
	}

	if sub.HasPaymentForAttempt(attempt.ID) {
		// Повтор расчета после сбоя: платеж уже записан.
		sm.log.Infow("Settlement replay ignored, payment already recorded",
			"adminID", attempt.AdminID, "attemptID", attempt.ID)
		return sub, sm.finishAttempt(ctx, attempt)
	}

	now := sm.now()
	endDate, err := domain.ComputeEndDate(now, attempt.BillingCycle)
	if err != nil {
		return domain.Subscription{}, err
	}

	ownerConfig := sm.lookupOwnerConfig(ctx, attempt.MethodID)

	sub.PlanID = attempt.PlanID
	sub.BillingCycle = attempt.BillingCycle
	sub.Amount = attempt.Amount
	sub.Status = domain.SubscriptionStatusActive
	sub.StartDate = now
	sub.EndDate = endDate
	sub.NextPaymentDate = endDate
	sub.AutoRenew = true
	sub.PaymentDestination = &domain.PaymentDestination{
		Method:              attempt.MethodID,
		OwnerConfig:         ownerConfig,
		AdminPaymentDetails: cloneFields(attempt.Fields),
	}
	sub.PaymentHistory = append(sub.PaymentHistory, domain.PaymentRecord{
		ID:                  uuid.NewString(),
		AttemptID:           attempt.ID,
		Amount:              attempt.Amount,
		Date:                now,
		Method:              attempt.MethodID,
		Status:              domain.PaymentStatusCompleted,
		RawDetails:          cloneFields(attempt.Fields),
		OwnerConfigSnapshot: ownerConfig,
	})

	saved, err := sm.subs.Save(ctx, sub, sub.Version)
	if err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			sm.log.Warnw("Settlement rejected on stale snapshot, attempt stays resumable",
				"adminID", attempt.AdminID, "attemptID", attempt.ID)
			return domain.Subscription{}, domain.ErrStaleSnapshot
		}
		return domain.Subscription{}, fmt.Errorf("failed to save subscription: %w", err)
	}

	if sm.metrics != nil {
		sm.metrics.IncSettlementCompleted(attempt.PlanID, string(attempt.BillingCycle))
		sm.metrics.ObservePaymentAmount(attempt.Amount, string(attempt.BillingCycle))
	}
	sm.log.Infow("Payment settled",
		"adminID", attempt.AdminID, "attemptID", attempt.ID,
		"planID", attempt.PlanID, "amount", attempt.Amount, "nextPayment", saved.NextPaymentDate)

	if sm.notifier != nil {
		sm.notifier.NotifyOwner(ctx, saved)
	}

	return saved, sm.finishAttempt(ctx, attempt)
}

// finishAttempt завершает попытку и возвращает администратора в idle.
func (sm *StateMachine) finishAttempt(ctx context.Context, attempt domain.UpgradeAttempt) error {
	if err := sm.attempts.Delete(ctx, attempt.AdminID); err != nil {
		return fmt.Errorf("failed to clear settled attempt: %w", err)
	}
	return nil
}

// requireState загружает попытку и проверяет, что она находится в одном из
// допустимых состояний для события. Отсутствие попытки трактуется как idle.
func (sm *StateMachine) requireState(ctx context.Context, adminID, event string, allowed ...domain.UpgradeState) (domain.UpgradeAttempt, error) {
	attempt, err := sm.attempts.Get(ctx, adminID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			sm.incInvalidTransition(event)
			return domain.UpgradeAttempt{}, domain.NewInvalidTransition(string(domain.UpgradeStateIdle), event)
		}
		return domain.UpgradeAttempt{}, fmt.Errorf("failed to load upgrade attempt: %w", err)
	}

	for _, state := range allowed {
		if attempt.State == state {
			return attempt, nil
		}
	}

	sm.incInvalidTransition(event)
	return domain.UpgradeAttempt{}, domain.NewInvalidTransition(string(attempt.State), event)
}

// getOrCreate возвращает подписку администратора, создавая trial для нового.
func (sm *StateMachine) getOrCreate(ctx context.Context, adminID string) (domain.Subscription, error) {
	sub, err := sm.subs.Get(ctx, adminID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Subscription{}, fmt.Errorf("failed to load subscription: %w", err)
	}

	created, err := sm.subs.Create(ctx, domain.NewTrialSubscription(adminID, sm.now()))
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Конкурентное создание: перечитываем чужую запись.
			return sm.subs.Get(ctx, adminID)
		}
		return domain.Subscription{}, fmt.Errorf("failed to create trial subscription: %w", err)
	}

	sm.log.Infow("Trial subscription created", "adminID", adminID)
	return created, nil
}

// lookupOwnerConfig читает реквизиты владельца для метода оплаты.
// Отсутствие настроек не блокирует расчет: снимок остается пустым.
func (sm *StateMachine) lookupOwnerConfig(ctx context.Context, methodID string) map[string]string {
	if sm.destinations == nil {
		return nil
	}

	config, err := sm.destinations.GetConfig(ctx, methodID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			sm.log.Warnw("Failed to load owner destination config", "methodID", methodID, "error", err)
		}
		return nil
	}
	return config
}

func (sm *StateMachine) incInvalidTransition(event string) {
	if sm.metrics != nil {
		sm.metrics.IncInvalidTransition(event)
	}
}

// codeDestination выбирает адрес доставки кода из реквизитов администратора
// по каналу подтверждения метода.
func codeDestination(medium domain.VerificationMedium, fields map[string]string) string {
	switch medium {
	case domain.VerificationMediumEmail:
		return fields["paypalEmail"]
	case domain.VerificationMediumSMS:
		return fields["phoneNumber"]
	default:
		return ""
	}
}

// redactChallenge убирает код подтверждения из снимка попытки,
// отдаваемого наружу.
func redactChallenge(attempt domain.UpgradeAttempt) *domain.UpgradeAttempt {
	out := attempt
	if attempt.Challenge != nil {
		challenge := *attempt.Challenge
		challenge.Code = ""
		out.Challenge = &challenge
	}
	return &out
}

func cloneFields(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
