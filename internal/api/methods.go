package api

import (
	"context"

	"github.com/nerrad567/rpihome-core/internal/dispatch"
)

// Method names served by the registry.
const (
	MethodEcho           = "echo"
	MethodGetCameraImage = "get-camera-image"
	MethodIsEnoughWater  = "is-enough-water"
	MethodWater          = "water"
	MethodTurnServo      = "turn-servo"
	MethodConditioners   = "conditioners"
	MethodGetClimate     = "get-climate"
	MethodSetClimate     = "set-climate"
	MethodIsEnabled      = "is-enabled"
	MethodSetSwitch      = "set-switch"
	MethodListSwitches   = "list-switches"
	MethodJournal        = "journal"
)

// eventSource tags events emitted by this package.
const eventSource = "api"

// keyed is implemented by inputs that carry the protected key.
type keyed interface {
	protectedKey() (string, bool)
}

// requiredKey is embedded by inputs whose payload must carry the key.
type requiredKey struct {
	Key string `json:"key"`
}

func (k requiredKey) protectedKey() (string, bool) { return k.Key, true }

// optionalKey is embedded by inputs that may carry the key. Without it
// the Protected-Key header is consulted.
type optionalKey struct {
	Key *string `json:"key,omitempty"`
}

func (k optionalKey) protectedKey() (string, bool) {
	if k.Key == nil {
		return "", false
	}
	return *k.Key, true
}

// protected is a JSON handler whose input carries the key.
type protected[I keyed, O any] func(ctx context.Context, req *dispatch.Request, in I) (O, error)

func (f protected[I, O]) Process(ctx context.Context, req *dispatch.Request, in I) (O, error) {
	return f(ctx, req, in)
}

// ReadKey implements dispatch.KeyReader.
func (f protected[I, O]) ReadKey(in I) (string, bool) {
	return in.protectedKey()
}

func (s *Server) withKey() dispatch.Option {
	return dispatch.WithProtectedKey(s.cfg.Server.ProtectedKey)
}

// registerMethods binds every endpoint.
func (s *Server) registerMethods() {
	key := s.withKey()
	r := s.registry

	r.Register(dispatch.NewRequestHandler(MethodEcho).
		Post(dispatch.JSON[echoInput, echoOutput](dispatch.JSONFunc[echoInput, echoOutput](s.handleEcho))))

	r.Register(dispatch.NewRequestHandler(MethodGetCameraImage).
		Post(dispatch.JSON[keyOnlyInput, cameraImageOutput](protected[keyOnlyInput, cameraImageOutput](s.handleGetCameraImage), key)))
	r.Register(dispatch.NewRequestHandler(MethodIsEnoughWater).
		Post(dispatch.JSON[keyOnlyInput, resultOutput](protected[keyOnlyInput, resultOutput](s.handleIsEnoughWater), key)))
	r.Register(dispatch.NewRequestHandler(MethodWater).
		Post(dispatch.JSON[waterInput, waterOutput](protected[waterInput, waterOutput](s.handleWater), key)))
	r.Register(dispatch.NewRequestHandler(MethodTurnServo).
		Post(dispatch.JSON[turnServoInput, statusOutput](protected[turnServoInput, statusOutput](s.handleTurnServo), key)))

	r.Register(dispatch.NewRequestHandler(MethodConditioners).
		Post(dispatch.JSON[conditionersInput, conditionersOutput](protected[conditionersInput, conditionersOutput](s.handleConditioners), key)))
	r.Register(dispatch.NewRequestHandler(MethodGetClimate).
		Post(dispatch.JSON[keyOnlyInput, climateOutput](protected[keyOnlyInput, climateOutput](s.handleGetClimate), key)))
	r.Register(dispatch.NewRequestHandler(MethodSetClimate).
		Post(dispatch.JSON[setClimateInput, statusOutput](protected[setClimateInput, statusOutput](s.handleSetClimate), key)))

	isEnabled := dispatch.JSON[isEnabledInput, isEnabledOutput](protected[isEnabledInput, isEnabledOutput](s.handleIsEnabled), key)
	r.Register(dispatch.NewRequestHandler(MethodIsEnabled).Get(isEnabled).Post(isEnabled))
	r.Register(dispatch.NewRequestHandler(MethodSetSwitch).
		Post(dispatch.JSON[setSwitchInput, setSwitchOutput](protected[setSwitchInput, setSwitchOutput](s.handleSetSwitch), key)))
	listSwitches := dispatch.JSON[optionalKeyInput, listSwitchesOutput](protected[optionalKeyInput, listSwitchesOutput](s.handleListSwitches), key)
	r.Register(dispatch.NewRequestHandler(MethodListSwitches).Get(listSwitches).Post(listSwitches))

	if s.journal != nil {
		list := dispatch.JSON[journalInput, *journalOutput](protected[journalInput, *journalOutput](s.handleJournal), key)
		r.Register(dispatch.NewRequestHandler(MethodJournal).Get(list).Post(list))
	}
}

// keyOnlyInput is the payload of methods that take nothing but the key.
type keyOnlyInput struct {
	requiredKey
}

// optionalKeyInput is keyOnlyInput for methods that accept the header.
type optionalKeyInput struct {
	optionalKey
}

type resultOutput struct {
	Result bool `json:"result"`
}

type statusOutput struct {
	Result string `json:"result"`
}
