package privileged

import (
	"github.com/stretchr/testify/mock"

	"github.com/haukened/rr-ifw/internal/ifw/domain"
)

// MockRunner is a testify mock of a command runner for use in other packages' tests.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(command string) domain.CommandResult {
	args := m.Called(command)
	return args.Get(0).(domain.CommandResult)
}

// OK is a successful result with no output.
var OK = domain.CommandResult{Success: true}

// Failed is an unsuccessful result with no output.
var Failed = domain.CommandResult{Success: false}
