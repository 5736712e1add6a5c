package investment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/internal/adapters/ledger"
	"meridian/internal/domain/fund"
	"meridian/internal/domain/identity"
	"meridian/internal/domain/investment"
	"meridian/internal/domain/user"
	"meridian/internal/events"
	"meridian/internal/metrics"
	"meridian/internal/services/workflow"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// Service orchestrates the investment lifecycle. Confirmation is the
// mint workflow: record on the ledger, mint fund tokens 1:1 with the
// invested amount and persist the issuance.
type Service struct {
	investments investment.Repository
	funds       fund.Repository
	users       user.Repository
	kyc         identity.Repository
	gateway     *ledger.Gateway
	publisher   *events.Publisher
	log         *logger.Logger
}

// NewService creates a new investment service
func NewService(
	investments investment.Repository,
	funds fund.Repository,
	users user.Repository,
	kyc identity.Repository,
	gateway *ledger.Gateway,
	publisher *events.Publisher,
	log *logger.Logger,
) *Service {
	return &Service{
		investments: investments,
		funds:       funds,
		users:       users,
		kyc:         kyc,
		gateway:     gateway,
		publisher:   publisher,
		log:         log.With("component", "investment_service"),
	}
}

// Create validates and inserts a pending investment, reserving capacity
// on the fund. No ledger interaction happens here; the ledger write is
// part of confirmation.
func (s *Service) Create(ctx context.Context, fundID, investorID uuid.UUID, amount decimal.Decimal) (*investment.Investment, error) {
	investor, err := s.users.GetByID(ctx, investorID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve investor")
	}

	rec, err := s.kyc.GetByUserID(ctx, investorID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Wrap(err, "failed to load kyc record")
	}
	if rec == nil || rec.Status != identity.StatusApproved {
		return nil, errors.Wrapf(errors.ErrKYCNotApproved, "investor %s is not KYC approved", investor.ID)
	}

	f, err := s.funds.GetByID(ctx, fundID)
	if err != nil {
		return nil, err
	}
	if !f.AcceptsInvestments() {
		return nil, errors.Wrapf(errors.ErrFundNotAcceptingInvestments, "fund %s is %s", f.ID, f.Status)
	}
	if err := f.ValidateInvestmentAmount(amount); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	inv := &investment.Investment{
		ID:           uuid.New(),
		FundID:       fundID,
		InvestorID:   investorID,
		Amount:       amount,
		TokensIssued: decimal.Zero,
		Status:       investment.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Reserve capacity first. The conditional UPDATE re-checks the target
	// bound so two concurrent creates cannot jointly overshoot it.
	if err := s.funds.AddRaised(ctx, fundID, amount); err != nil {
		return nil, err
	}
	if err := s.investments.Create(ctx, inv); err != nil {
		// Release the reservation, the row never existed
		if rbErr := s.funds.AddRaised(ctx, fundID, amount.Neg()); rbErr != nil {
			s.log.Errorw("Failed to release reserved capacity",
				"fund_id", fundID,
				"amount", amount,
				"error", rbErr,
			)
		}
		return nil, errors.Wrap(err, "failed to create investment")
	}

	s.publisher.InvestmentChanged(ctx, events.InvestmentEvent{
		InvestmentID: inv.ID,
		FundID:       fundID,
		InvestorID:   investorID,
		Status:       inv.Status.String(),
		Amount:       amount,
	})

	s.log.Infow("Created investment",
		"investment_id", inv.ID,
		"fund_id", fundID,
		"investor_id", investorID,
		"amount", amount,
	)

	return inv, nil
}

// ConfirmOutcome is the discriminated result of the confirmation workflow
type ConfirmOutcome struct {
	Success          bool
	Reason           workflow.Reason
	Err              error
	Investment       *investment.Investment
	TxHash           string
	AlreadyConfirmed bool
}

func confirmFailure(reason workflow.Reason, err error) *ConfirmOutcome {
	metrics.WorkflowExecutions.WithLabelValues("investment_confirmation", string(reason)).Inc()
	return &ConfirmOutcome{Reason: reason, Err: err}
}

// Confirm runs the confirmation workflow: verify the investor identity on
// the ledger, record the investment, mint tokens 1:1 with the amount and
// persist the issuance. Idempotent: a settled investment returns success
// without re-minting. A mint failure leaves the row pending for retry.
func (s *Service) Confirm(ctx context.Context, investmentID, callerID uuid.UUID) *ConfirmOutcome {
	inv, err := s.investments.GetByID(ctx, investmentID)
	if err != nil {
		return confirmFailure(workflow.Classify(err), err)
	}

	f, err := s.funds.GetByID(ctx, inv.FundID)
	if err != nil {
		return confirmFailure(workflow.Classify(err), err)
	}
	if f.ManagerID != callerID {
		err := errors.Wrap(errors.ErrForbidden, "only the fund manager can confirm investments")
		return confirmFailure(workflow.ReasonForbidden, err)
	}

	if inv.Settled() {
		metrics.WorkflowExecutions.WithLabelValues("investment_confirmation", "already_confirmed").Inc()
		return &ConfirmOutcome{Success: true, Investment: inv, AlreadyConfirmed: true}
	}
	if inv.Status != investment.StatusPending {
		err := errors.Wrapf(errors.ErrInvalidState, "investment is %s", inv.Status)
		return confirmFailure(workflow.ReasonInvalidState, err)
	}

	investor, err := s.users.GetByID(ctx, inv.InvestorID)
	if err != nil {
		return confirmFailure(workflow.Classify(err), err)
	}
	if !investor.HasWallet() {
		err := errors.Wrap(errors.ErrNoWallet, "investor has no wallet address")
		return confirmFailure(workflow.ReasonNoWalletAddress, err)
	}

	if err := s.gateway.EnsureReady(ctx); err != nil {
		return confirmFailure(workflow.ReasonUnavailable, err)
	}

	// Minting bypasses the transfer compliance check, never this one
	verified, err := s.gateway.IsKycVerified(ctx, investor.WalletAddress)
	if err != nil {
		return confirmFailure(workflow.ReasonBlockchainError, err)
	}
	if !verified {
		err := errors.Wrapf(errors.ErrIdentityNotVerified, "wallet %s has no verified identity", investor.WalletAddress)
		return confirmFailure(workflow.ReasonIdentityNotVerified, err)
	}

	// Tokens are issued 1:1 with the invested amount
	tokenAmount := inv.Amount

	recorded, err := s.gateway.RecordInvestment(ctx, f.OnChainFundID, investor.WalletAddress,
		inv.ID.String(), inv.Amount, tokenAmount)
	if err != nil {
		return confirmFailure(workflow.ReasonBlockchainError, err)
	}

	// Persist the record linkage before minting so a mint failure leaves a
	// pending row that already points at its ledger entry. The event
	// consumer re-links it if this write is lost.
	if err := s.investments.LinkOnChain(ctx, inv.ID, recorded.OnChainInvestmentID, recorded.TxHash); err != nil {
		s.log.Warnw("Failed to persist on-chain record linkage",
			"investment_id", inv.ID,
			"record_tx_hash", recorded.TxHash,
			"error", err,
		)
	}

	txHash, err := s.gateway.MintFundTokens(ctx, f.ContractAddress, investor.WalletAddress, tokenAmount)
	if err != nil {
		// Row stays pending, confirmation is retryable and the recorded
		// ledger entry is de-duplicated by the idempotency key
		return confirmFailure(workflow.ReasonMintFailed, err)
	}

	if err := s.investments.Confirm(ctx, inv.ID, tokenAmount, recorded.OnChainInvestmentID, txHash); err != nil {
		if errors.Is(err, errors.ErrInvalidState) {
			current, getErr := s.investments.GetByID(ctx, inv.ID)
			if getErr == nil && current.Settled() {
				metrics.WorkflowExecutions.WithLabelValues("investment_confirmation", "already_confirmed").Inc()
				return &ConfirmOutcome{Success: true, Investment: current, AlreadyConfirmed: true}
			}
		}
		s.log.Errorw("Tokens minted but local confirmation write failed",
			"investment_id", inv.ID,
			"tx_hash", txHash,
			"error", err,
		)
		return confirmFailure(workflow.ReasonInternal, err)
	}

	now := time.Now().UTC()
	inv.Status = investment.StatusConfirmed
	inv.TokensIssued = tokenAmount
	inv.OnChainID = recorded.OnChainInvestmentID
	inv.OnChainTxHash = recorded.TxHash
	inv.TransactionHash = txHash
	inv.ConfirmedAt = &now

	s.publisher.InvestmentChanged(ctx, events.InvestmentEvent{
		InvestmentID: inv.ID,
		FundID:       inv.FundID,
		InvestorID:   inv.InvestorID,
		Status:       inv.Status.String(),
		Amount:       inv.Amount,
		TokensIssued: tokenAmount,
		TxHash:       txHash,
	})

	s.log.Infow("Confirmed investment",
		"investment_id", inv.ID,
		"fund_id", inv.FundID,
		"tokens_issued", tokenAmount,
		"tx_hash", txHash,
	)
	metrics.WorkflowExecutions.WithLabelValues("investment_confirmation", "success").Inc()

	return &ConfirmOutcome{Success: true, Investment: inv, TxHash: txHash}
}

// Cancel transitions a pending investment to cancelled and rolls its
// amount back out of the fund's raised total
func (s *Service) Cancel(ctx context.Context, investmentID, callerID uuid.UUID) error {
	inv, err := s.investments.GetByID(ctx, investmentID)
	if err != nil {
		return err
	}

	f, err := s.funds.GetByID(ctx, inv.FundID)
	if err != nil {
		return err
	}
	if callerID != inv.InvestorID && callerID != f.ManagerID {
		return errors.Wrap(errors.ErrForbidden, "caller may not cancel this investment")
	}

	if err := s.investments.Cancel(ctx, investmentID); err != nil {
		return err
	}

	// Cancellation releases the reserved capacity so the raised total
	// reflects live commitments only
	if err := s.funds.AddRaised(ctx, inv.FundID, inv.Amount.Neg()); err != nil {
		s.log.Errorw("Cancelled investment but failed to roll back raised amount",
			"investment_id", investmentID,
			"fund_id", inv.FundID,
			"amount", inv.Amount,
			"error", err,
		)
	}

	s.publisher.InvestmentChanged(ctx, events.InvestmentEvent{
		InvestmentID: inv.ID,
		FundID:       inv.FundID,
		InvestorID:   inv.InvestorID,
		Status:       investment.StatusCancelled.String(),
		Amount:       inv.Amount,
	})

	s.log.Infow("Cancelled investment",
		"investment_id", investmentID,
		"fund_id", inv.FundID,
		"amount", inv.Amount,
	)

	return nil
}

// Get retrieves an investment by ID
func (s *Service) Get(ctx context.Context, investmentID uuid.UUID) (*investment.Investment, error) {
	return s.investments.GetByID(ctx, investmentID)
}

// ListByFund retrieves all investments into a fund
func (s *Service) ListByFund(ctx context.Context, fundID uuid.UUID) ([]*investment.Investment, error) {
	return s.investments.ListByFund(ctx, fundID)
}

// ListByInvestor retrieves a user's investments
func (s *Service) ListByInvestor(ctx context.Context, investorID uuid.UUID) ([]*investment.Investment, error) {
	return s.investments.ListByInvestor(ctx, investorID)
}
