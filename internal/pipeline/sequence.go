package pipeline

import "context"

// stage advances the state of a run by one step.
type stage[S any] struct {
	name string
	run  func(ctx context.Context, state S) S
}

// sequence runs stages in order until halted reports true or the context is
// done. It returns the last state and the context error, if any.
func sequence[S any](ctx context.Context, stages []stage[S], state S, halted func(S) bool) (S, error) {
	for _, st := range stages {
		if halted(state) {
			return state, nil
		}
		if err := ctx.Err(); err != nil {
			return state, err
		}
		state = st.run(ctx, state)
	}
	return state, nil
}
