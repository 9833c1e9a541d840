// Package coinselect selects spendable outputs to cover a target amount plus
// a weight-dependent fee. Fee and selection are coupled: the fee depends on
// the input count and the input count depends on the fee, so selection
// iterates to a fixpoint instead of doing a single greedy pass.
package coinselect

import (
	"fmt"
	"sort"
)

// maxIterations bounds the fee/selection fixpoint so pathological output
// sets cannot loop forever.
const maxIterations = 10

// Coin is a spendable output from the selector's point of view.
type Coin interface {
	Value() uint64
}

// Selection is the result of a successful coin selection.
type Selection struct {
	Coins  []Coin
	Fee    uint64
	Change uint64
}

// InsufficientBalanceError reports that the available outputs cannot cover
// the target amount plus fee.
type InsufficientBalanceError struct {
	Have uint64
	Need uint64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf(
		"insufficient balance: have %d, need %d nanogrin", e.Have, e.Need,
	)
}

// Select picks outputs covering target plus the converged fee. Outputs are
// consumed smallest first to limit dust fragmentation. The fee is first
// assumed for two outputs (payee and change); once the input count has
// converged the exact fee is recomputed with the actual output count.
func Select(coins []Coin, target uint64) (*Selection, error) {
	sorted := make([]Coin, len(coins))
	copy(sorted, coins)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Value() < sorted[j].Value()
	})

	var total uint64
	for _, c := range sorted {
		total += c.Value()
	}

	assumedInputs := 1
	var selected []Coin
	var selectedSum uint64

	for iter := 0; iter < maxIterations; iter++ {
		fee := Fee(assumedInputs, 2, 1)
		need := target + fee

		selected = selected[:0]
		selectedSum = 0
		for _, c := range sorted {
			selected = append(selected, c)
			selectedSum += c.Value()
			if selectedSum >= need {
				break
			}
		}
		if selectedSum < need {
			if sel, ok := exactNoChange(selected, selectedSum, target); ok {
				return sel, nil
			}
			return nil, &InsufficientBalanceError{Have: total, Need: need}
		}
		if len(selected) <= assumedInputs {
			break
		}
		assumedInputs = len(selected)
	}

	fee := Fee(len(selected), 2, 1)
	if selectedSum < target+fee {
		// The last iteration grew the input count without re-checking.
		if sel, ok := exactNoChange(selected, selectedSum, target); ok {
			return sel, nil
		}
		return nil, &InsufficientBalanceError{Have: total, Need: target + fee}
	}

	// Tighten the fee when the selection leaves no change output.
	if sel, ok := exactNoChange(selected, selectedSum, target); ok {
		return sel, nil
	}

	return &Selection{
		Coins:  selected,
		Fee:    fee,
		Change: selectedSum - target - fee,
	}, nil
}

// exactNoChange accepts a selection that covers the target plus the
// single-output fee exactly, dropping the change output instead of
// failing against the two-output fee.
func exactNoChange(selected []Coin, selectedSum, target uint64) (*Selection, bool) {
	feeNoChange := Fee(len(selected), 1, 1)
	if selectedSum != target+feeNoChange {
		return nil, false
	}
	out := make([]Coin, len(selected))
	copy(out, selected)
	return &Selection{Coins: out, Fee: feeNoChange, Change: 0}, true
}
