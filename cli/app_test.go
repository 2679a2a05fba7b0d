package cli

import (
	"errors"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandlerNilError(t *testing.T) {
	ExitErrHandler(nil, nil)
}

func TestExitErrHandlerRecognizesExitCoder(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"no message", cli.Exit("", 0), 0},
		{"action rejected", cli.Exit("action requires the leader unit", 1), 1},
		{"wrapped", errors.Join(errors.New("context"), cli.Exit("inner", 7)), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var exitCoder cli.ExitCoder
			if !errors.As(tt.err, &exitCoder) {
				t.Fatalf("error should be cli.ExitCoder")
			}
			if exitCoder.ExitCode() != tt.wantCode {
				t.Errorf("exit code = %d, want %d", exitCoder.ExitCode(), tt.wantCode)
			}
		})
	}
}

func TestExitErrHandlerRegularErrorIsNotExitCoder(t *testing.T) {
	err := errors.New("regular error")
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		t.Fatal("regular error should not be cli.ExitCoder")
	}
}
