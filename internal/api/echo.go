package api

import (
	"context"

	"github.com/nerrad567/rpihome-core/internal/dispatch"
)

// logicErrorProbe makes echo fail with a logic error so clients can test
// their error path.
const logicErrorProbe = "logic error test"

type echoInput struct {
	Str string `json:"str"`
}

type echoOutput struct {
	Str string `json:"str"`
}

func (s *Server) handleEcho(_ context.Context, _ *dispatch.Request, in echoInput) (echoOutput, error) {
	if in.Str == logicErrorProbe {
		return echoOutput{}, dispatch.InvalidProtectedKey
	}
	return echoOutput(in), nil
}
