package ledger

import (
	"context"

	"github.com/google/uuid"
)

// EarningsSummary is the read contract consumed by the freelancer dashboard.
type EarningsSummary struct {
	GrossEarningsPaise    int64            `json:"gross_earnings_paise"`
	NetEarningsPaise      int64            `json:"net_earnings_paise"`
	PendingPaise          int64            `json:"pending_paise"`
	TotalWithdrawalsPaise int64            `json:"total_withdrawals_paise"`
	AutomaticPaise        int64            `json:"automatic_paise"`
	ManualPaise           int64            `json:"manual_paise"`
	Monthly               []MonthlyEarning `json:"monthly"`
}

type Service interface {
	EarningsSummary(ctx context.Context, userID uuid.UUID) (*EarningsSummary, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

// EarningsSummary computes the summary straight from the ledger; the wallet
// cache is not consulted.
func (s *service) EarningsSummary(ctx context.Context, userID uuid.UUID) (*EarningsSummary, error) {
	gross, err := s.repo.SumCompletedEarnings(ctx, userID)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.repo.SumActiveWithdrawals(ctx, userID)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.SumPendingEarnings(ctx, userID)
	if err != nil {
		return nil, err
	}
	auto, manual, err := s.repo.AutoManualSplit(ctx, userID)
	if err != nil {
		return nil, err
	}
	monthly, err := s.repo.MonthlyEarnings(ctx, userID, 6)
	if err != nil {
		return nil, err
	}
	net := gross - withdrawals
	if net < 0 {
		net = 0
	}
	return &EarningsSummary{
		GrossEarningsPaise:    gross,
		NetEarningsPaise:      net,
		PendingPaise:          pending,
		TotalWithdrawalsPaise: withdrawals,
		AutomaticPaise:        auto,
		ManualPaise:           manual,
		Monthly:               monthly,
	}, nil
}
