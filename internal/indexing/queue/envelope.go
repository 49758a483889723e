package queue

import (
	"encoding/json"
	"fmt"

	"github.com/vietddude/ledgersync/internal/core/domain"
)

// NewEnvelope wraps job for the named type.
func NewEnvelope(t domain.JobType, job any) (*domain.JobEnvelope, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal %s job: %w", t, err)
	}
	return &domain.JobEnvelope{Type: t, Data: data}, nil
}

func decode[T any](env *domain.JobEnvelope) (*T, error) {
	var job T
	if err := json.Unmarshal(env.Data, &job); err != nil {
		return nil, unprocessable("decode %s job: %v", env.Type, err)
	}
	return &job, nil
}
