package workflow

// Advisory is the outcome of a best-effort annotation call. A degraded value
// carries the fallback and the reason the call did not produce one.
type Advisory[T any] struct {
	Value    T
	Degraded bool
	Reason   string
}

func ok[T any](value T) Advisory[T] {
	return Advisory[T]{Value: value}
}

func degraded[T any](fallback T, reason error) Advisory[T] {
	a := Advisory[T]{Value: fallback, Degraded: true}
	if reason != nil {
		a.Reason = reason.Error()
	}
	return a
}
