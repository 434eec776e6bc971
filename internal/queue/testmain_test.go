package queue_test

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// verify the worker pool does not leak goroutines across tests
	goleak.VerifyTestMain(m)
}
