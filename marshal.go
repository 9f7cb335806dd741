package caseflow

import (
	"encoding/json"

	"github.com/luno/jettison/errors"
)

func Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal")
	}

	return b, nil
}

func Unmarshal(b []byte, v any) error {
	err := json.Unmarshal(b, v)
	if err != nil {
		return errors.Wrap(err, "failed to unmarshal")
	}

	return nil
}
