package api

import (
	"context"
	"net"
	"strconv"

	"github.com/nerrad567/rpihome-core/internal/command"
	"github.com/nerrad567/rpihome-core/internal/dispatch"
	"github.com/nerrad567/rpihome-core/internal/events"
	"github.com/nerrad567/rpihome-core/internal/switches"
)

type isEnabledInput struct {
	optionalKey
	Name string  `json:"name"`
	IP   *string `json:"ip,omitempty"`
	Port *uint16 `json:"port,omitempty"`
}

type isEnabledOutput struct {
	Enabled bool `json:"enabled"`
}

// handleIsEnabled answers a peer's poll and remembers where it lives.
// Without an explicit ip the connection's remote address is recorded.
func (s *Server) handleIsEnabled(_ context.Context, req *dispatch.Request, in isEnabledInput) (isEnabledOutput, error) {
	ip := in.IP
	if ip == nil {
		if remote := req.RemoteIP(); remote != "" {
			ip = &remote
		}
	}
	enabled, err := s.switches.IsEnabled(in.Name, ip, in.Port)
	if err != nil {
		return isEnabledOutput{}, err
	}
	return isEnabledOutput{Enabled: enabled}, nil
}

type setSwitchInput struct {
	requiredKey
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

type setSwitchOutput struct {
	Created bool `json:"created"`
}

// notifyPayload is the command input sent to a switch's peer.
type notifyPayload struct {
	Name  string `json:"name" cbor:"name"`
	Value bool   `json:"value" cbor:"value"`
}

func (s *Server) handleSetSwitch(ctx context.Context, _ *dispatch.Request, in setSwitchInput) (setSwitchOutput, error) {
	res, err := s.switches.Set(in.Name, in.Value)
	if err != nil {
		return setSwitchOutput{}, err
	}

	s.events.Emit(ctx, events.Event{
		Type:    events.TypeSwitch,
		Entity:  in.Name,
		Source:  eventSource,
		Details: map[string]any{"enabled": in.Value, "created": res.Created},
	})

	if res.Peer != nil {
		s.notifyPeer(ctx, *res.Peer, notifyPayload{Name: in.Name, Value: in.Value})
	}
	return setSwitchOutput{Created: res.Created}, nil
}

// notifyPeer tells peer about a switch change. Failures are logged only.
func (s *Server) notifyPeer(ctx context.Context, peer switches.Endpoint, payload notifyPayload) {
	addr := net.JoinHostPort(peer.IP, strconv.Itoa(int(peer.Port)))
	log := s.logger.With("switch", payload.Name, "peer", addr)

	cmd, err := command.New(addr,
		command.WithTimeout(s.cfg.GetCommandTimeout()),
		command.WithMaxResponseBytes(s.cfg.Command.MaxResponseBytes),
	)
	if err != nil {
		log.Warn("switch peer address not usable", "error", err)
		return
	}
	if _, err := cmd.MethodID(s.cfg.Switches.NotifyMethodID).Input(payload); err != nil {
		log.Warn("encoding switch notification failed", "error", err)
		return
	}
	if err := cmd.Execute(ctx, nil); err != nil {
		log.Warn("switch peer notification failed", "error", err)
		return
	}
	log.Debug("switch peer notified")
}

type listSwitchesOutput struct {
	Switches []switches.Switch `json:"switches"`
}

func (s *Server) handleListSwitches(_ context.Context, _ *dispatch.Request, _ optionalKeyInput) (listSwitchesOutput, error) {
	list, err := s.switches.List()
	if err != nil {
		return listSwitchesOutput{}, err
	}
	return listSwitchesOutput{Switches: list}, nil
}
