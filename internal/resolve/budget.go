package resolve

// Budget bounds the number of expensive acquisition attempts in one run.
// The two counters are independent and increment on attempt, not on
// success, so a run's total external-call cost stays bounded even when
// every attempt fails. Single-threaded use only.
type Budget struct {
	maxPulls  int
	maxBuilds int
	pulls     int
	builds    int
}

// NewBudget creates a budget allowing up to maxPulls registry pulls and
// maxBuilds source builds.
func NewBudget(maxPulls, maxBuilds int) *Budget {
	return &Budget{maxPulls: maxPulls, maxBuilds: maxBuilds}
}

// TakePull consumes one registry-pull attempt. It returns false without
// consuming anything when the budget is exhausted.
func (b *Budget) TakePull() bool {
	if b.pulls >= b.maxPulls {
		return false
	}
	b.pulls++
	return true
}

// TakeBuild consumes one build attempt. It returns false without consuming
// anything when the budget is exhausted.
func (b *Budget) TakeBuild() bool {
	if b.builds >= b.maxBuilds {
		return false
	}
	b.builds++
	return true
}

// PullsUsed returns the number of pull attempts consumed so far.
func (b *Budget) PullsUsed() int { return b.pulls }

// BuildsUsed returns the number of build attempts consumed so far.
func (b *Budget) BuildsUsed() int { return b.builds }
