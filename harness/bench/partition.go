package bench

import (
	"fmt"

	"github.com/maesker/Master-Thesis/harness"
)

// Partition splits total files across clients. Every client gets
// total/clients files and the last one also takes the remainder, so the
// counts always sum to total.
func Partition(total, clients int) ([]int, error) {
	if clients < 1 {
		return nil, fmt.Errorf("%w: client count must be >= 1, got %d", harness.ErrInvalidParameter, clients)
	}
	if total < 1 {
		return nil, fmt.Errorf("%w: total file count must be >= 1, got %d", harness.ErrInvalidParameter, total)
	}
	per := total / clients
	counts := make([]int, clients)
	for i := range counts {
		counts[i] = per
	}
	counts[clients-1] = total - per*(clients-1)
	return counts, nil
}
