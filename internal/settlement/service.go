package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unjob-ai/backend/internal/ledger"
	"github.com/unjob-ai/backend/internal/models"
	"github.com/unjob-ai/backend/internal/notify"
	"github.com/unjob-ai/backend/internal/repository"
	"github.com/unjob-ai/backend/internal/wallet"
)

// ErrForbidden is returned when the approving company does not own the
// project.
var ErrForbidden = errors.New("caller does not own this project")

// ErrNotSubmitted is returned when the project is not awaiting review.
var ErrNotSubmitted = errors.New("project is not awaiting review")

// ProjectStore is the project/gig collaborator surface.
type ProjectStore interface {
	GetSettlementContext(ctx context.Context, projectID uuid.UUID) (*repository.SettlementContext, error)
	ApproveTx(ctx context.Context, tx pgx.Tx, projectID, gigID, freelancerID uuid.UUID, feedback string) error
	Reject(ctx context.Context, projectID uuid.UUID, reason string) error
}

// LedgerStore writes the durable payment record.
type LedgerStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.Payment) error
	FindSettlement(ctx context.Context, projectID, payee uuid.UUID) (*models.Payment, error)
}

// UserStore bumps the freelancer's aggregate stats.
type UserStore interface {
	AddEarningsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, payoutPaise int64) error
}

// WalletCredit is the wallet cache crediting contract, idempotent by source
// payment.
type WalletCredit interface {
	Credit(ctx context.Context, userID uuid.UUID, amountPaise int64, reference uuid.UUID, description string) (*wallet.MutationResult, error)
}

// Archiver arms the conversation auto-close schedule.
type Archiver interface {
	Schedule(ctx context.Context, conversationID uuid.UUID, reason string) error
}

// Notifier raises user notifications; failures on the settlement path are
// logged, never propagated.
type Notifier interface {
	Notify(ctx context.Context, e notify.Event) error
	NotifyTx(ctx context.Context, tx pgx.Tx, e notify.Event) error
}

// MessageStore posts system messages into the project conversation.
type MessageStore interface {
	CreateSystemMessage(ctx context.Context, conversationID uuid.UUID, content string) error
}

// Result reports a settlement outcome. AlreadyProcessed marks the
// idempotency short-circuit: a success variant, not a failure.
// WalletCredited and ArchivalScheduled are partial-success flags; when
// false, reconciliation and the next sweep are the recovery paths.
type Result struct {
	PaymentID         uuid.UUID `json:"payment_id"`
	PayoutPaise       int64     `json:"payout_paise"`
	CommissionPaise   int64     `json:"commission_paise"`
	AlreadyProcessed  bool      `json:"already_processed"`
	WalletCredited    bool      `json:"wallet_credited"`
	ArchivalScheduled bool      `json:"archival_scheduled"`
}

// Service converts an approved project into a completed ledger record, a
// wallet credit and an armed conversation archival.
type Service struct {
	projects          ProjectStore
	ledger            LedgerStore
	users             UserStore
	wallets           WalletCredit
	archiver          Archiver
	notifier          Notifier
	messages          MessageStore
	commissionRateBps int64
	log               *slog.Logger
}

func NewService(
	projects ProjectStore,
	ledgerStore LedgerStore,
	users UserStore,
	wallets WalletCredit,
	archiver Archiver,
	notifier Notifier,
	messages MessageStore,
	commissionRateBps int64,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		projects:          projects,
		ledger:            ledgerStore,
		users:             users,
		wallets:           wallets,
		archiver:          archiver,
		notifier:          notifier,
		messages:          messages,
		commissionRateBps: commissionRateBps,
		log:               log,
	}
}

// Commission returns the platform cut for a budget, rounded half up.
func (s *Service) Commission(budgetPaise int64) int64 {
	return (budgetPaise*s.commissionRateBps + 5000) / 10000
}

// ApproveProject settles an approval decision. The payment, stats bump and
// project/gig status writes commit in one transaction; wallet crediting and
// archival scheduling run after and only degrade the result flags on
// failure. A duplicate settlement (unique-index hit) short-circuits to an
// AlreadyProcessed result and retries the idempotent wallet credit, which
// covers a crash between the earlier commit and its credit.
func (s *Service) ApproveProject(ctx context.Context, projectID, companyID uuid.UUID, feedback string) (*Result, error) {
	sctx, err := s.projects.GetSettlementContext(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if sctx.Project.CompanyID != companyID {
		return nil, ErrForbidden
	}
	if sctx.Application.FreelancerID != sctx.Project.FreelancerID {
		// Broken link between application and project: treat as missing.
		return nil, repository.ErrNotFound
	}
	if sctx.Project.Status != models.ProjectStatusSubmitted && sctx.Project.Status != models.ProjectStatusInProgress {
		if sctx.Project.Status == models.ProjectStatusApproved {
			return s.alreadyProcessed(ctx, sctx)
		}
		return nil, ErrNotSubmitted
	}

	budget := sctx.Gig.BudgetPaise
	commission := s.Commission(budget)
	payout := budget - commission
	freelancer := sctx.Project.FreelancerID

	payment := &models.Payment{
		ID:             uuid.New(),
		Payer:          companyID,
		Payee:          freelancer,
		AmountPaise:    payout,
		Type:           models.PaymentTypeGig,
		Status:         models.PaymentStatusCompleted,
		RelatedGig:     &sctx.Gig.ID,
		RelatedProject: &projectID,
		Metadata: models.PaymentMetadata{
			AutoPayment:             true,
			PlatformCommissionPaise: commission,
			OriginalBudgetPaise:     budget,
			// The budget was escrowed when the project started; this record
			// books earnings, it does not charge the company again.
			IsInternalTransfer: true,
			TransferID:         "tr_" + uuid.NewString(),
		},
	}

	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.ledger.CreateTx(ctx, tx, payment); err != nil {
		if errors.Is(err, ledger.ErrDuplicateSettlement) {
			return s.alreadyProcessed(ctx, sctx)
		}
		return nil, err
	}
	if err := s.users.AddEarningsTx(ctx, tx, freelancer, payout); err != nil {
		return nil, err
	}
	if err := s.projects.ApproveTx(ctx, tx, projectID, sctx.Gig.ID, freelancer, feedback); err != nil {
		return nil, err
	}
	if err := s.notifier.NotifyTx(ctx, tx, notify.Event{
		Type:      models.NotifyProjectApproved,
		UserID:    freelancer,
		RelatedID: &projectID,
	}); err != nil {
		// Notification rows never hold the settlement hostage.
		s.log.Warn("approval notification", "project_id", projectID, "error", err)
	}
	if err := s.notifier.NotifyTx(ctx, tx, notify.Event{
		Type:        models.NotifyPaymentReceived,
		UserID:      freelancer,
		RelatedID:   &payment.ID,
		AmountPaise: payout,
	}); err != nil {
		s.log.Warn("settlement notification", "project_id", projectID, "error", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	res := &Result{
		PaymentID:       payment.ID,
		PayoutPaise:     payout,
		CommissionPaise: commission,
	}
	s.applySideEffects(ctx, sctx, payment.ID, payout, res)
	return res, nil
}

// alreadyProcessed resolves the existing settlement and retries its
// idempotent side effects.
func (s *Service) alreadyProcessed(ctx context.Context, sctx *repository.SettlementContext) (*Result, error) {
	existing, err := s.ledger.FindSettlement(ctx, sctx.Project.ID, sctx.Project.FreelancerID)
	if err != nil {
		return nil, err
	}
	res := &Result{AlreadyProcessed: true}
	if existing == nil {
		return res, nil
	}
	res.PaymentID = existing.ID
	res.PayoutPaise = existing.AmountPaise
	res.CommissionPaise = existing.Metadata.PlatformCommissionPaise
	s.applySideEffects(ctx, sctx, existing.ID, existing.AmountPaise, res)
	return res, nil
}

// applySideEffects credits the wallet and arms archival, both idempotent and
// best-effort. Failures flip result flags and log; they never unwind the
// committed settlement. A retry that finds the credit already applied stays
// silent: no second system message, no re-armed archival clock.
func (s *Service) applySideEffects(ctx context.Context, sctx *repository.SettlementContext, paymentID uuid.UUID, payoutPaise int64, res *Result) {
	freelancer := sctx.Project.FreelancerID

	credit, err := s.wallets.Credit(ctx, freelancer, payoutPaise,
		paymentID, fmt.Sprintf("Payment for %s", sctx.Gig.Title))
	if err != nil {
		s.log.Error("wallet credit after settlement", "project_id", sctx.Project.ID, "payment_id", paymentID, "error", err)
		return
	}
	res.WalletCredited = true
	if credit.AlreadyApplied {
		return
	}

	if sctx.Project.ConversationID != nil {
		if err := s.archiver.Schedule(ctx, *sctx.Project.ConversationID, "project_completed"); err != nil {
			s.log.Error("schedule conversation archival", "project_id", sctx.Project.ID, "error", err)
		} else {
			res.ArchivalScheduled = true
		}
		if err := s.messages.CreateSystemMessage(ctx, *sctx.Project.ConversationID,
			"The project was approved and payment has been released. This conversation will be archived in 14 days."); err != nil {
			s.log.Warn("settlement system message", "project_id", sctx.Project.ID, "error", err)
		}
	}
}

// RejectProject records a rejection decision. No financial writes happen;
// the freelancer is notified and the conversation gets a system message.
func (s *Service) RejectProject(ctx context.Context, projectID, companyID uuid.UUID, reason string) error {
	sctx, err := s.projects.GetSettlementContext(ctx, projectID)
	if err != nil {
		return err
	}
	if sctx.Project.CompanyID != companyID {
		return ErrForbidden
	}
	if sctx.Project.Status != models.ProjectStatusSubmitted {
		return ErrNotSubmitted
	}
	if err := s.projects.Reject(ctx, projectID, reason); err != nil {
		return err
	}
	if err := s.notifier.Notify(ctx, notify.Event{
		Type:      models.NotifyProjectRejected,
		UserID:    sctx.Project.FreelancerID,
		RelatedID: &projectID,
		Reason:    reason,
	}); err != nil {
		s.log.Warn("rejection notification", "project_id", projectID, "error", err)
	}
	if sctx.Project.ConversationID != nil {
		if err := s.messages.CreateSystemMessage(ctx, *sctx.Project.ConversationID,
			"The submission was returned for changes: "+reason); err != nil {
			s.log.Warn("rejection system message", "project_id", projectID, "error", err)
		}
	}
	return nil
}
