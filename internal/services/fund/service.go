package fund

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/internal/adapters/ledger"
	"meridian/internal/domain/fund"
	"meridian/internal/domain/investment"
	"meridian/internal/domain/user"
	"meridian/internal/events"
	"meridian/internal/metrics"
	"meridian/internal/services/workflow"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// Service orchestrates the fund lifecycle, including the activation
// workflow that deploys the fund token on the ledger
type Service struct {
	funds       fund.Repository
	investments investment.Repository
	users       user.Repository
	gateway     *ledger.Gateway
	publisher   *events.Publisher
	log         *logger.Logger
}

// NewService creates a new fund service
func NewService(
	funds fund.Repository,
	investments investment.Repository,
	users user.Repository,
	gateway *ledger.Gateway,
	publisher *events.Publisher,
	log *logger.Logger,
) *Service {
	return &Service{
		funds:       funds,
		investments: investments,
		users:       users,
		gateway:     gateway,
		publisher:   publisher,
		log:         log.With("component", "fund_service"),
	}
}

// CreateParams are the inputs for a new draft fund
type CreateParams struct {
	Name              string
	ManagerID         uuid.UUID
	TargetAmount      decimal.Decimal
	MinimumAmount     decimal.Decimal
	ManagementFeePct  decimal.Decimal
	PerformanceFeePct decimal.Decimal
	RiskLevel         fund.RiskLevel
	Deadline          *time.Time
}

// Create inserts a new fund in draft status
func (s *Service) Create(ctx context.Context, params CreateParams) (*fund.Fund, error) {
	if params.Name == "" {
		return nil, errors.Wrap(errors.ErrValidation, "fund name is required")
	}
	if !params.TargetAmount.IsPositive() || !params.MinimumAmount.IsPositive() {
		return nil, errors.Wrap(errors.ErrValidation, "target and minimum amounts must be positive")
	}
	if params.MinimumAmount.GreaterThan(params.TargetAmount) {
		return nil, errors.Wrap(errors.ErrValidation, "minimum cannot exceed target")
	}
	if !params.RiskLevel.Valid() {
		return nil, errors.Wrapf(errors.ErrValidation, "invalid risk level %q", params.RiskLevel)
	}

	manager, err := s.users.GetByID(ctx, params.ManagerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve manager")
	}
	if manager.Role != user.RoleGP && manager.Role != user.RoleAdmin {
		return nil, errors.Wrap(errors.ErrForbidden, "only fund managers can create funds")
	}

	now := time.Now().UTC()
	f := &fund.Fund{
		ID:                uuid.New(),
		Name:              params.Name,
		ManagerID:         params.ManagerID,
		TargetAmount:      params.TargetAmount,
		RaisedAmount:      decimal.Zero,
		MinimumAmount:     params.MinimumAmount,
		ManagementFeePct:  params.ManagementFeePct,
		PerformanceFeePct: params.PerformanceFeePct,
		RiskLevel:         params.RiskLevel,
		Status:            fund.StatusDraft,
		Deadline:          params.Deadline,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.funds.Create(ctx, f); err != nil {
		return nil, errors.Wrap(err, "failed to create fund")
	}

	s.log.Infow("Created fund",
		"fund_id", f.ID,
		"manager_id", f.ManagerID,
		"target", f.TargetAmount,
	)

	return f, nil
}

// ActivateOutcome is the discriminated result of the activation workflow
type ActivateOutcome struct {
	Success         bool
	Reason          workflow.Reason
	Err             error
	Fund            *fund.Fund
	TxHash          string
	AlreadyDeployed bool
}

func activateFailure(reason workflow.Reason, err error) *ActivateOutcome {
	metrics.WorkflowExecutions.WithLabelValues("fund_activation", string(reason)).Inc()
	return &ActivateOutcome{Reason: reason, Err: err}
}

// Activate runs the fund activation workflow: approve the manager as GP,
// deploy the fund token and persist the ledger linkage with the
// draft → active transition. Idempotent: a fund that already carries a
// contract address returns it without a second deployment.
func (s *Service) Activate(ctx context.Context, fundID, callerID uuid.UUID) *ActivateOutcome {
	f, err := s.funds.GetByID(ctx, fundID)
	if err != nil {
		return activateFailure(workflow.Classify(err), err)
	}
	if f.ManagerID != callerID {
		err := errors.Wrap(errors.ErrForbidden, "only the fund manager can activate")
		return activateFailure(workflow.ReasonForbidden, err)
	}

	if f.Deployed() {
		s.log.Infow("Fund already deployed, activation is a no-op",
			"fund_id", f.ID,
			"contract_address", f.ContractAddress,
		)
		metrics.WorkflowExecutions.WithLabelValues("fund_activation", "already_deployed").Inc()
		return &ActivateOutcome{Success: true, Fund: f, AlreadyDeployed: true}
	}

	if err := f.CanActivate(); err != nil {
		return activateFailure(workflow.Classify(err), err)
	}

	if err := s.gateway.EnsureReady(ctx); err != nil {
		return activateFailure(workflow.ReasonUnavailable, err)
	}

	manager, err := s.users.GetByID(ctx, f.ManagerID)
	if err != nil {
		return activateFailure(workflow.Classify(err), err)
	}
	if !manager.HasWallet() {
		err := errors.Wrap(errors.ErrNoWallet, "manager has no wallet address")
		return activateFailure(workflow.ReasonGPNoWallet, err)
	}

	if err := s.gateway.EnsureGPApproved(ctx, manager.WalletAddress); err != nil {
		return activateFailure(workflow.ReasonGPApprovalFailed, err)
	}

	tokenName, tokenSymbol := deriveToken(f.Name, f.TokenSymbol)

	deployed, err := s.gateway.DeployFundToken(ctx, f.ID.String(), tokenName, tokenSymbol,
		manager.WalletAddress, f.TargetAmount, f.MinimumAmount)
	if err != nil {
		return activateFailure(workflow.ReasonDeploymentFailed, err)
	}

	// Deployment is on the ledger now. A failed local write here opens the
	// divergence window; the fund event consumer re-links it from the
	// FundTokenCreated event keyed by the fund id salt.
	if err := s.funds.Activate(ctx, f.ID, deployed.TokenAddress, deployed.OnChainFundID, tokenSymbol); err != nil {
		if errors.Is(err, errors.ErrInvalidState) {
			// Lost a race with a concurrent activation, report theirs
			current, getErr := s.funds.GetByID(ctx, f.ID)
			if getErr == nil && current.Deployed() {
				metrics.WorkflowExecutions.WithLabelValues("fund_activation", "already_deployed").Inc()
				return &ActivateOutcome{Success: true, Fund: current, AlreadyDeployed: true}
			}
		}
		s.log.Errorw("Fund token deployed but local activation write failed",
			"fund_id", f.ID,
			"contract_address", deployed.TokenAddress,
			"on_chain_fund_id", deployed.OnChainFundID,
			"error", err,
		)
		return activateFailure(workflow.ReasonInternal, err)
	}

	f.Status = fund.StatusActive
	f.ContractAddress = deployed.TokenAddress
	f.OnChainFundID = deployed.OnChainFundID
	f.TokenSymbol = tokenSymbol

	s.publisher.FundActivated(ctx, events.FundActivatedEvent{
		FundID:          f.ID,
		ContractAddress: deployed.TokenAddress,
		OnChainFundID:   deployed.OnChainFundID,
		TokenSymbol:     tokenSymbol,
		TxHash:          deployed.TxHash,
	})

	s.log.Infow("Activated fund",
		"fund_id", f.ID,
		"contract_address", deployed.TokenAddress,
		"on_chain_fund_id", deployed.OnChainFundID,
		"tx_hash", deployed.TxHash,
	)
	metrics.WorkflowExecutions.WithLabelValues("fund_activation", "success").Inc()

	return &ActivateOutcome{Success: true, Fund: f, TxHash: deployed.TxHash}
}

// Close transitions an active fund to closed
func (s *Service) Close(ctx context.Context, fundID, callerID uuid.UUID) error {
	return s.transition(ctx, fundID, callerID, fund.StatusActive, fund.StatusClosed)
}

// Liquidate transitions an active or closed fund to liquidated
func (s *Service) Liquidate(ctx context.Context, fundID, callerID uuid.UUID) error {
	f, err := s.authorized(ctx, fundID, callerID)
	if err != nil {
		return err
	}
	from := f.Status
	if err := f.Liquidate(); err != nil {
		return err
	}
	if err := s.funds.UpdateStatus(ctx, fundID, from, fund.StatusLiquidated); err != nil {
		return err
	}
	s.publisher.FundStatusChanged(ctx, events.FundStatusChangedEvent{
		FundID: fundID,
		From:   from.String(),
		To:     fund.StatusLiquidated.String(),
	})
	return nil
}

// Delete removes a draft fund with no investments
func (s *Service) Delete(ctx context.Context, fundID, callerID uuid.UUID) error {
	f, err := s.authorized(ctx, fundID, callerID)
	if err != nil {
		return err
	}
	count, err := s.investments.CountByFund(ctx, fundID)
	if err != nil {
		return errors.Wrap(err, "failed to count investments")
	}
	if err := f.Deletable(count); err != nil {
		return err
	}
	if err := s.funds.Delete(ctx, fundID); err != nil {
		return err
	}
	s.log.Infow("Deleted draft fund", "fund_id", fundID)
	return nil
}

// Get retrieves a fund by ID
func (s *Service) Get(ctx context.Context, fundID uuid.UUID) (*fund.Fund, error) {
	return s.funds.GetByID(ctx, fundID)
}

// List retrieves paginated funds filtered by status
func (s *Service) List(ctx context.Context, status fund.Status, limit, offset int) ([]*fund.Fund, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.funds.List(ctx, status, limit, offset)
}

// ListByManager retrieves all funds managed by a user
func (s *Service) ListByManager(ctx context.Context, managerID uuid.UUID) ([]*fund.Fund, error) {
	return s.funds.ListByManager(ctx, managerID)
}

func (s *Service) transition(ctx context.Context, fundID, callerID uuid.UUID, from, to fund.Status) error {
	if _, err := s.authorized(ctx, fundID, callerID); err != nil {
		return err
	}
	if err := s.funds.UpdateStatus(ctx, fundID, from, to); err != nil {
		return err
	}
	s.publisher.FundStatusChanged(ctx, events.FundStatusChangedEvent{
		FundID: fundID,
		From:   from.String(),
		To:     to.String(),
	})
	s.log.Infow("Fund status changed", "fund_id", fundID, "from", from, "to", to)
	return nil
}

func (s *Service) authorized(ctx context.Context, fundID, callerID uuid.UUID) (*fund.Fund, error) {
	f, err := s.funds.GetByID(ctx, fundID)
	if err != nil {
		return nil, err
	}
	if f.ManagerID != callerID {
		return nil, errors.Wrap(errors.ErrForbidden, "caller does not manage this fund")
	}
	return f, nil
}

// deriveToken builds the token name and symbol from the fund name when
// the manager did not supply a symbol
func deriveToken(fundName, symbol string) (string, string) {
	name := fundName + " Token"
	if symbol != "" {
		return name, symbol
	}

	var b strings.Builder
	for _, word := range strings.Fields(fundName) {
		r, _ := utf8.DecodeRuneInString(word)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
		if b.Len() >= 6 {
			break
		}
	}
	if b.Len() == 0 {
		return name, "FUND"
	}
	return name, b.String()
}
