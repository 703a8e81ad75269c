package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"loan-workers/internal/pipeline"
)

type recordingPersister struct {
	err   error
	saved []string
}

func (p *recordingPersister) Save(ctx context.Context, applicationID string, result pipeline.Result) error {
	p.saved = append(p.saved, applicationID)
	return p.err
}

func TestMultiPersister(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		cacheErr   error
		wantErr    []string
		wantCache  int
		wantSearch int
	}{
		{
			name:       "all sinks succeed",
			wantCache:  1,
			wantSearch: 1,
		},
		{
			name:       "optional sink failure does not stop the rest",
			cacheErr:   errors.New("redis down"),
			wantErr:    []string{"cache: redis down"},
			wantCache:  1,
			wantSearch: 1,
		},
		{
			name:    "required sink failure stops the chain",
			dbErr:   errors.New("tx aborted"),
			wantErr: []string{"postgres: tx aborted"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &recordingPersister{err: tt.dbErr}
			cache := &recordingPersister{err: tt.cacheErr}
			search := &recordingPersister{}

			m := NewMultiPersister(
				NamedPersister{Name: "postgres", Persister: db, Required: true},
				NamedPersister{Name: "cache", Persister: cache},
				NamedPersister{Name: "search", Persister: search},
				NamedPersister{Name: "disabled"},
			)

			err := m.Save(context.Background(), "app-001", pipeline.Result{Status: pipeline.StatusSanctioned})

			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
			} else {
				for _, msg := range tt.wantErr {
					assert.ErrorContains(t, err, msg)
				}
			}
			assert.Len(t, db.saved, 1)
			assert.Len(t, cache.saved, tt.wantCache)
			assert.Len(t, search.saved, tt.wantSearch)
		})
	}
}
