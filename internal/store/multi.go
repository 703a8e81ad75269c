package store

import (
	"context"
	"errors"
	"fmt"

	"loan-workers/internal/pipeline"
)

// NamedPersister labels a persister for error reporting.
type NamedPersister struct {
	Name      string
	Persister pipeline.Persister
	// Required sinks abort the chain on failure.
	Required bool
}

// MultiPersister fans a result out to several sinks in order. Optional
// sinks that fail are reported in the joined error but do not stop the
// rest.
type MultiPersister struct {
	sinks []NamedPersister
}

func NewMultiPersister(sinks ...NamedPersister) *MultiPersister {
	out := make([]NamedPersister, 0, len(sinks))
	for _, s := range sinks {
		if s.Persister != nil {
			out = append(out, s)
		}
	}
	return &MultiPersister{sinks: out}
}

func (m *MultiPersister) Save(ctx context.Context, applicationID string, result pipeline.Result) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Persister.Save(ctx, applicationID, result); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			if s.Required {
				break
			}
		}
	}
	return errors.Join(errs...)
}
