package db_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omni/job-relay/db"
)

func TestIgnoreErrNotFound(t *testing.T) {
	t.Parallel()

	other := errors.New("connection refused")
	for _, test := range []struct {
		Name     string
		Err      error
		Expected error
	}{
		{"nil", nil, nil},
		{"not found", db.ErrNotFound, nil},
		{"wrapped not found", fmt.Errorf("can't load relay cursor: %w", db.ErrNotFound), nil},
		{"other error", other, other},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, test.Expected, db.IgnoreErrNotFound(test.Err))
		})
	}
}
