package permission

import (
	"context"
	"fmt"
	"time"

	"github.com/opencode-ai/walletperm/internal/wallet"
)

// SpendingLabels returns the labels that attribute a spend by originator to
// the calendar month (UTC) containing t. Only actions carrying them count
// toward the monthly total; local.Wallet adds them to every action made for
// an originator other than its admin, and any other wallet must do the same.
func SpendingLabels(originator string, t time.Time) []string {
	return wallet.SpendingLabels(originator, t)
}

// QuerySpentThisMonth sums what originator has spent in the current UTC
// calendar month. Actions that net-received funds count as zero.
func (m *Manager) QuerySpentThisMonth(ctx context.Context, originator string) (uint64, error) {
	res, err := m.wallet.ListActions(ctx, wallet.ListActionsArgs{
		Labels:         SpendingLabels(originator, m.clock.Now()),
		LabelQueryMode: wallet.QueryModeAll,
	}, m.adminOriginator)
	if err != nil {
		return 0, fmt.Errorf("list spending actions: %w", err)
	}

	var total uint64
	for _, a := range res.Actions {
		if a.Satoshis > 0 {
			total += uint64(a.Satoshis)
		}
	}
	return total, nil
}
