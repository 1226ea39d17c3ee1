package specphase

import "context"

// DefaultPassThreshold is the minimum score a phase's output must reach
// to be accepted (§4.7 step 3).
const DefaultPassThreshold = 0.7

// DefaultMaxAttemptsPerPhase bounds retries before a spec is failed
// outright (§4.7 step 3).
const DefaultMaxAttemptsPerPhase = 3

// Evaluation is the scored verdict on one phase execution's output.
type Evaluation struct {
	Score    float64
	Passed   bool
	Feedback string
	Details  map[string]interface{}
}

// Evaluator scores a phase's executor output against that phase's
// acceptance criteria.
type Evaluator interface {
	Evaluate(ctx context.Context, phase Phase, output string) (Evaluation, error)
}

// ThresholdEvaluator wraps a scoring function and applies
// DefaultPassThreshold (or an override) to decide Passed.
type ThresholdEvaluator struct {
	Score     func(ctx context.Context, phase Phase, output string) (float64, string, map[string]interface{}, error)
	Threshold float64
}

// NewThresholdEvaluator builds an Evaluator from a scoring function,
// defaulting the pass threshold to DefaultPassThreshold.
func NewThresholdEvaluator(score func(ctx context.Context, phase Phase, output string) (float64, string, map[string]interface{}, error)) *ThresholdEvaluator {
	return &ThresholdEvaluator{Score: score, Threshold: DefaultPassThreshold}
}

func (e *ThresholdEvaluator) Evaluate(ctx context.Context, phase Phase, output string) (Evaluation, error) {
	score, feedback, details, err := e.Score(ctx, phase, output)
	if err != nil {
		return Evaluation{}, err
	}
	threshold := e.Threshold
	if threshold == 0 {
		threshold = DefaultPassThreshold
	}
	return Evaluation{
		Score:    score,
		Passed:   score >= threshold,
		Feedback: feedback,
		Details:  details,
	}, nil
}
