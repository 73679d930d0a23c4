package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-orchestrator/config"
	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type renewalTestDeps struct {
	svc          *RenewalServiceImpl
	subRepo      *mocks.MockSubscriptionRepository
	txRepo       *mocks.MockTransactionRepository
	pmRepo       *mocks.MockPaymentMethodRepository
	customerRepo *mocks.MockCustomerRepository
	registry     *mocks.MockProviderRegistry
	adapter      *mocks.MockProviderAdapter
	transactor   *mocks.MockDBTransactor
	emitter      *mocks.MockEventEmitter
	ctrl         *gomock.Controller
}

func setupRenewalService(t *testing.T) *renewalTestDeps {
	ctrl := gomock.NewController(t)
	d := &renewalTestDeps{
		subRepo:      mocks.NewMockSubscriptionRepository(ctrl),
		txRepo:       mocks.NewMockTransactionRepository(ctrl),
		pmRepo:       mocks.NewMockPaymentMethodRepository(ctrl),
		customerRepo: mocks.NewMockCustomerRepository(ctrl),
		registry:     mocks.NewMockProviderRegistry(ctrl),
		adapter:      mocks.NewMockProviderAdapter(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		emitter:      mocks.NewMockEventEmitter(ctrl),
		ctrl:         ctrl,
	}
	cfg := config.RenewalConfig{
		PollInterval: time.Minute,
		Concurrency:  10,
		BatchSize:    200,
		MaxAttempts:  5,
		BaseDelay:    2 * time.Second,
		MaxDelay:     60 * time.Second,
		GracePeriod:  72 * time.Hour,
	}
	d.svc = NewRenewalService(
		d.subRepo, d.txRepo, d.pmRepo, d.customerRepo,
		d.registry, d.transactor, d.emitter, cfg,
		zerolog.Nop(),
	)
	return d
}

func dueSubscription() *domain.CustomerSubscription {
	return &domain.CustomerSubscription{
		ID:                 uuid.New(),
		CustomerID:         uuid.New(),
		MerchantID:         uuid.New(),
		ProductID:          uuid.New(),
		Provider:           domain.ProviderKRXPay,
		AccountID:          "acct_main",
		BillingModel:       domain.BillingPrepaid,
		Status:             domain.SubscriptionStatusActive,
		CurrentPeriodStart: time.Now().UTC().AddDate(0, -1, 0),
		CurrentPeriodEnd:   time.Now().UTC().Add(-time.Hour),
		IntervalUnit:       domain.IntervalMonth,
		IntervalCount:      1,
		PriceCents:         9900,
		Currency:           "BRL",
	}
}

// ==================== RenewOne Guard Tests ====================

func TestRenewalService_RenewOne_NotFound(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	id := uuid.New()
	d.subRepo.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil)

	outcome, err := d.svc.RenewOne(context.Background(), id)
	assert.Equal(t, ports.RenewalSkipped, outcome)
	assertAppError(t, err, "PAY_002")
}

func TestRenewalService_RenewOne_NotYetDue(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	sub := dueSubscription()
	sub.CurrentPeriodEnd = time.Now().UTC().Add(24 * time.Hour)
	d.subRepo.EXPECT().GetByID(gomock.Any(), sub.ID).Return(sub, nil)

	outcome, err := d.svc.RenewOne(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.RenewalSkipped, outcome)
}

func TestRenewalService_RenewOne_TerminalNeverRenews(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	sub := dueSubscription()
	sub.Status = domain.SubscriptionStatusCanceled
	d.subRepo.EXPECT().GetByID(gomock.Any(), sub.ID).Return(sub, nil)

	outcome, err := d.svc.RenewOne(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.RenewalSkipped, outcome)
}

// ==================== Prepaid Renewal Tests ====================

func TestRenewalService_RenewOne_ChargesAndAdvances(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	sub := dueSubscription()
	sub.Status = domain.SubscriptionStatusPastDue
	periodKey := domain.PeriodKey(sub.CurrentPeriodEnd)
	orderID := domain.RenewalOrderID(sub.ID, periodKey)
	method := &domain.CustomerPaymentMethod{
		ID:                      uuid.New(),
		CustomerID:              sub.CustomerID,
		Provider:                sub.Provider,
		AccountID:               sub.AccountID,
		ProviderPaymentMethodID: "tok_visa_4242",
		ExpMonth:                12,
		ExpYear:                 2030,
		Status:                  domain.PaymentMethodStatusActive,
		IsDefault:               true,
	}
	link := &domain.CustomerProvider{
		CustomerID:         sub.CustomerID,
		Provider:           sub.Provider,
		AccountID:          sub.AccountID,
		ProviderCustomerID: "cus_123",
	}
	tx := &mockTx{}

	d.subRepo.EXPECT().GetByID(ctx, sub.ID).Return(sub, nil)
	d.txRepo.EXPECT().GetByProviderOrderID(ctx, sub.Provider, orderID).Return(nil, nil)
	d.registry.EXPECT().Adapter(sub.Provider).Return(d.adapter, nil)
	d.pmRepo.EXPECT().GetDefault(ctx, sub.CustomerID, sub.Provider, sub.AccountID).Return(method, nil)
	d.customerRepo.EXPECT().GetProviderLink(ctx, sub.CustomerID, sub.Provider, sub.AccountID).Return(link, nil)
	d.txRepo.EXPECT().Upsert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, txn *domain.PaymentTransaction) (*domain.PaymentTransaction, error) {
			assert.Equal(t, domain.RenewalTransactionID(sub.Provider, orderID), txn.ID)
			assert.Equal(t, orderID, txn.ProviderOrderID)
			assert.Equal(t, domain.TransactionStatusPending, txn.Status)
			require.NotNil(t, txn.SubscriptionID)
			assert.Equal(t, sub.ID, *txn.SubscriptionID)
			return txn, nil
		})
	d.adapter.EXPECT().CreateCharge(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.ChargeRequest) (*ports.ChargeResult, error) {
			assert.Equal(t, orderID, req.OrderID)
			assert.Equal(t, "cus_123", req.ProviderCustomerID)
			assert.Equal(t, "tok_visa_4242", req.PaymentMethodToken)
			assert.Equal(t, "subscription renewal "+periodKey, req.Description)
			return &ports.ChargeResult{
				ProviderChargeID: "ch_ren_1",
				Status:           ports.ChargeSucceeded,
				RawStatus:        "approved",
			}, nil
		})
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().UpsertTx(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.PaymentTransaction) (*domain.PaymentTransaction, error) {
			assert.Equal(t, domain.TransactionStatusPaid, txn.Status)
			require.NotNil(t, txn.ProcessedAt)
			return txn, nil
		})
	start, end := sub.NextPeriod(sub.CurrentPeriodEnd)
	// The CAS advance restores ACTIVE itself; a separate UpdateStatus call
	// here would key off the stale in-memory status.
	d.subRepo.EXPECT().AdvancePeriod(ctx, tx, sub.ID, start, end, sub.CurrentPeriodEnd).Return(true, nil)
	d.emitter.EXPECT().Emit(ctx, gomock.Any()).Return(nil)

	outcome, err := d.svc.RenewOne(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.RenewalRenewed, outcome)
}

func TestRenewalService_RenewOne_SecondRunDoesNotChargeTwice(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	sub := dueSubscription()
	orderID := domain.RenewalOrderID(sub.ID, domain.PeriodKey(sub.CurrentPeriodEnd))
	paid := &domain.PaymentTransaction{
		ID:              domain.RenewalTransactionID(sub.Provider, orderID),
		Provider:        sub.Provider,
		ProviderOrderID: orderID,
		SubscriptionID:  &sub.ID,
		Status:          domain.TransactionStatusPaid,
	}
	tx := &mockTx{}

	// The cycle already has a PAID transaction; only the period advance is
	// replayed. CreateCharge has no expectation: calling it fails the test.
	d.subRepo.EXPECT().GetByID(ctx, sub.ID).Return(sub, nil)
	d.txRepo.EXPECT().GetByProviderOrderID(ctx, sub.Provider, orderID).Return(paid, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().UpsertTx(ctx, tx, paid).Return(paid, nil)
	start, end := sub.NextPeriod(sub.CurrentPeriodEnd)
	d.subRepo.EXPECT().AdvancePeriod(ctx, tx, sub.ID, start, end, sub.CurrentPeriodEnd).Return(false, nil)

	outcome, err := d.svc.RenewOne(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.RenewalRenewed, outcome)
}

func TestRenewalService_RenewOne_ExistingFailedGoesPastDue(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	sub := dueSubscription()
	orderID := domain.RenewalOrderID(sub.ID, domain.PeriodKey(sub.CurrentPeriodEnd))
	reason := "insufficient funds"
	failed := &domain.PaymentTransaction{
		ID:              domain.RenewalTransactionID(sub.Provider, orderID),
		Provider:        sub.Provider,
		ProviderOrderID: orderID,
		Status:          domain.TransactionStatusFailed,
		FailureReason:   &reason,
	}

	d.subRepo.EXPECT().GetByID(ctx, sub.ID).Return(sub, nil)
	d.txRepo.EXPECT().GetByProviderOrderID(ctx, sub.Provider, orderID).Return(failed, nil)
	d.subRepo.EXPECT().UpdateStatus(ctx, sub.ID, domain.SubscriptionStatusPastDue, &reason).Return(nil)

	outcome, err := d.svc.RenewOne(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.RenewalPastDue, outcome)
}

func TestRenewalService_RenewOne_ExistingPendingWaits(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	sub := dueSubscription()
	orderID := domain.RenewalOrderID(sub.ID, domain.PeriodKey(sub.CurrentPeriodEnd))
	pending := &domain.PaymentTransaction{
		ID:              domain.RenewalTransactionID(sub.Provider, orderID),
		Provider:        sub.Provider,
		ProviderOrderID: orderID,
		Status:          domain.TransactionStatusPending,
	}

	d.subRepo.EXPECT().GetByID(ctx, sub.ID).Return(sub, nil)
	d.txRepo.EXPECT().GetByProviderOrderID(ctx, sub.Provider, orderID).Return(pending, nil)

	outcome, err := d.svc.RenewOne(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.RenewalPending, outcome)
}

func TestRenewalService_RenewOne_DeclineGoesPastDue(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	sub := dueSubscription()
	orderID := domain.RenewalOrderID(sub.ID, domain.PeriodKey(sub.CurrentPeriodEnd))
	method := &domain.CustomerPaymentMethod{
		ID:                      uuid.New(),
		ProviderPaymentMethodID: "tok_visa_4242",
		ExpMonth:                12,
		ExpYear:                 2030,
		Status:                  domain.PaymentMethodStatusActive,
	}
	link := &domain.CustomerProvider{ProviderCustomerID: "cus_123"}

	d.subRepo.EXPECT().GetByID(ctx, sub.ID).Return(sub, nil)
	d.txRepo.EXPECT().GetByProviderOrderID(ctx, sub.Provider, orderID).Return(nil, nil)
	d.registry.EXPECT().Adapter(sub.Provider).Return(d.adapter, nil)
	d.pmRepo.EXPECT().GetDefault(ctx, sub.CustomerID, sub.Provider, sub.AccountID).Return(method, nil)
	d.customerRepo.EXPECT().GetProviderLink(ctx, sub.CustomerID, sub.Provider, sub.AccountID).Return(link, nil)
	d.txRepo.EXPECT().Upsert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, txn *domain.PaymentTransaction) (*domain.PaymentTransaction, error) {
			return txn, nil
		}).Times(2) // PENDING before the charge, FAILED after
	d.adapter.EXPECT().CreateCharge(ctx, gomock.Any()).Return(&ports.ChargeResult{
		Status:        ports.ChargeFailed,
		RawStatus:     "refused",
		FailureReason: "card declined by issuer",
	}, nil)
	declineReason := "card declined by issuer"
	d.subRepo.EXPECT().UpdateStatus(ctx, sub.ID, domain.SubscriptionStatusPastDue, &declineReason).Return(nil)

	outcome, err := d.svc.RenewOne(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.RenewalPastDue, outcome)
}

func TestRenewalService_RenewOne_OutcomeUnknownStaysPending(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	sub := dueSubscription()
	orderID := domain.RenewalOrderID(sub.ID, domain.PeriodKey(sub.CurrentPeriodEnd))
	method := &domain.CustomerPaymentMethod{
		ID:                      uuid.New(),
		ProviderPaymentMethodID: "tok_visa_4242",
		ExpMonth:                12,
		ExpYear:                 2030,
		Status:                  domain.PaymentMethodStatusActive,
	}
	link := &domain.CustomerProvider{ProviderCustomerID: "cus_123"}

	d.subRepo.EXPECT().GetByID(ctx, sub.ID).Return(sub, nil)
	d.txRepo.EXPECT().GetByProviderOrderID(ctx, sub.Provider, orderID).Return(nil, nil)
	d.registry.EXPECT().Adapter(sub.Provider).Return(d.adapter, nil)
	d.pmRepo.EXPECT().GetDefault(ctx, sub.CustomerID, sub.Provider, sub.AccountID).Return(method, nil)
	d.customerRepo.EXPECT().GetProviderLink(ctx, sub.CustomerID, sub.Provider, sub.AccountID).Return(link, nil)
	d.txRepo.EXPECT().Upsert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, txn *domain.PaymentTransaction) (*domain.PaymentTransaction, error) {
			return txn, nil
		})
	d.adapter.EXPECT().CreateCharge(ctx, gomock.Any()).
		Return(nil, errors.Join(ports.ErrOutcomeUnknown, context.DeadlineExceeded))

	// The PENDING row stays; reconciliation settles it later. No error so
	// the worker does not resubmit a charge.
	outcome, err := d.svc.RenewOne(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.RenewalPending, outcome)
}

func TestRenewalService_RenewOne_TransportErrorIsRetryable(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	sub := dueSubscription()
	orderID := domain.RenewalOrderID(sub.ID, domain.PeriodKey(sub.CurrentPeriodEnd))
	method := &domain.CustomerPaymentMethod{
		ID:                      uuid.New(),
		ProviderPaymentMethodID: "tok_visa_4242",
		ExpMonth:                12,
		ExpYear:                 2030,
		Status:                  domain.PaymentMethodStatusActive,
	}
	link := &domain.CustomerProvider{ProviderCustomerID: "cus_123"}

	d.subRepo.EXPECT().GetByID(ctx, sub.ID).Return(sub, nil)
	d.txRepo.EXPECT().GetByProviderOrderID(ctx, sub.Provider, orderID).Return(nil, nil)
	d.registry.EXPECT().Adapter(sub.Provider).Return(d.adapter, nil)
	d.pmRepo.EXPECT().GetDefault(ctx, sub.CustomerID, sub.Provider, sub.AccountID).Return(method, nil)
	d.customerRepo.EXPECT().GetProviderLink(ctx, sub.CustomerID, sub.Provider, sub.AccountID).Return(link, nil)
	d.txRepo.EXPECT().Upsert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, txn *domain.PaymentTransaction) (*domain.PaymentTransaction, error) {
			return txn, nil
		})
	d.adapter.EXPECT().CreateCharge(ctx, gomock.Any()).Return(nil, errors.New("connection refused"))

	outcome, err := d.svc.RenewOne(ctx, sub.ID)
	assert.Error(t, err)
	assert.Equal(t, ports.RenewalSkipped, outcome)
}

func TestRenewalService_RenewOne_NoUsableMethodGoesPastDue(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	sub := dueSubscription()
	orderID := domain.RenewalOrderID(sub.ID, domain.PeriodKey(sub.CurrentPeriodEnd))
	reason := "no usable payment method on file"

	d.subRepo.EXPECT().GetByID(ctx, sub.ID).Return(sub, nil)
	d.txRepo.EXPECT().GetByProviderOrderID(ctx, sub.Provider, orderID).Return(nil, nil)
	d.registry.EXPECT().Adapter(sub.Provider).Return(d.adapter, nil)
	d.pmRepo.EXPECT().GetDefault(ctx, sub.CustomerID, sub.Provider, sub.AccountID).Return(nil, nil)
	d.subRepo.EXPECT().UpdateStatus(ctx, sub.ID, domain.SubscriptionStatusPastDue, &reason).Return(nil)

	outcome, err := d.svc.RenewOne(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.RenewalPastDue, outcome)
}

func TestRenewalService_RenewOne_PinnedExpiredCardGoesPastDue(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	sub := dueSubscription()
	methodID := uuid.New()
	sub.VaultPaymentMethodID = &methodID
	orderID := domain.RenewalOrderID(sub.ID, domain.PeriodKey(sub.CurrentPeriodEnd))
	expired := &domain.CustomerPaymentMethod{
		ID:       methodID,
		ExpMonth: 1,
		ExpYear:  2024,
		Status:   domain.PaymentMethodStatusActive,
	}
	reason := "no usable payment method on file"

	d.subRepo.EXPECT().GetByID(ctx, sub.ID).Return(sub, nil)
	d.txRepo.EXPECT().GetByProviderOrderID(ctx, sub.Provider, orderID).Return(nil, nil)
	d.registry.EXPECT().Adapter(sub.Provider).Return(d.adapter, nil)
	d.pmRepo.EXPECT().GetByID(ctx, methodID).Return(expired, nil)
	d.subRepo.EXPECT().UpdateStatus(ctx, sub.ID, domain.SubscriptionStatusPastDue, &reason).Return(nil)

	outcome, err := d.svc.RenewOne(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.RenewalPastDue, outcome)
}

// ==================== Managed Renewal Tests ====================

func TestRenewalService_RenewOne_ManagedWithinGraceWaits(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	sub := dueSubscription()
	sub.BillingModel = domain.BillingManaged
	sub.Provider = domain.ProviderOpenFinance
	d.subRepo.EXPECT().GetByID(gomock.Any(), sub.ID).Return(sub, nil)

	// Due one hour ago with a 72h grace window: nothing to do yet.
	outcome, err := d.svc.RenewOne(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.RenewalSkipped, outcome)
}

func TestRenewalService_RenewOne_ManagedPastGraceGoesPastDue(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	sub := dueSubscription()
	sub.BillingModel = domain.BillingManaged
	sub.Provider = domain.ProviderOpenFinance
	sub.CurrentPeriodEnd = time.Now().UTC().Add(-96 * time.Hour)
	reason := "provider did not confirm renewal within grace period"

	d.subRepo.EXPECT().GetByID(gomock.Any(), sub.ID).Return(sub, nil)
	d.subRepo.EXPECT().UpdateStatus(gomock.Any(), sub.ID, domain.SubscriptionStatusPastDue, &reason).Return(nil)

	outcome, err := d.svc.RenewOne(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, ports.RenewalPastDue, outcome)
}

func TestRenewalService_ListDue(t *testing.T) {
	d := setupRenewalService(t)
	defer d.ctrl.Finish()

	now := time.Now().UTC()
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	d.subRepo.EXPECT().ListDueIDs(gomock.Any(), domain.ProviderKRXPay, domain.BillingPrepaid, now, 200).
		Return(ids, nil)

	out, err := d.svc.ListDue(context.Background(), domain.ProviderKRXPay, domain.BillingPrepaid, now, 200)
	require.NoError(t, err)
	assert.Equal(t, ids, out)
}
