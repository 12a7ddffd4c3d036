// Package switches keeps the in-memory table of named on/off switches.
//
// Peers poll a switch by name and may leave their address behind so the
// server can notify them when the switch changes. Names compare without
// regard to ASCII case. State lives only for the process lifetime.
package switches

import (
	"sort"
	"strings"

	"github.com/nerrad567/rpihome-core/internal/guard"
)

// Switch is one named switch.
type Switch struct {
	Name    string  `json:"name"`
	Enabled bool    `json:"enabled"`
	IP      *string `json:"ip,omitempty"`
	Port    *uint16 `json:"port,omitempty"`
}

// Endpoint is a peer address recorded for a switch.
type Endpoint struct {
	IP   string
	Port uint16
}

// SetResult describes the outcome of Set.
type SetResult struct {
	// Created is true when the switch did not exist before.
	Created bool

	// Peer is the last endpoint that polled the switch, if both its
	// address and port are known.
	Peer *Endpoint
}

type table struct {
	entries []*Switch
}

func (t *table) find(name string) *Switch {
	for _, s := range t.entries {
		if strings.EqualFold(s.Name, name) {
			return s
		}
	}
	return nil
}

// Table is the switch table. All methods are safe for concurrent use.
type Table struct {
	state *guard.Mutex[table]
}

// New creates an empty table.
func New() *Table {
	return &Table{state: guard.New(table{})}
}

// Set records value for name, creating the switch if needed.
func (t *Table) Set(name string, value bool) (SetResult, error) {
	var res SetResult
	err := t.state.With(func(tb *table) error {
		s := tb.find(name)
		if s == nil {
			tb.entries = append(tb.entries, &Switch{Name: name, Enabled: value})
			res.Created = true
			return nil
		}
		s.Enabled = value
		if s.IP != nil && s.Port != nil {
			res.Peer = &Endpoint{IP: *s.IP, Port: *s.Port}
		}
		return nil
	})
	return res, err
}

// IsEnabled returns the state of name. An unseen name is created
// disabled. A non-nil ip or port replaces the recorded one.
func (t *Table) IsEnabled(name string, ip *string, port *uint16) (bool, error) {
	var enabled bool
	err := t.state.With(func(tb *table) error {
		s := tb.find(name)
		if s == nil {
			s = &Switch{Name: name}
			tb.entries = append(tb.entries, s)
		}
		if ip != nil {
			v := *ip
			s.IP = &v
		}
		if port != nil {
			v := *port
			s.Port = &v
		}
		enabled = s.Enabled
		return nil
	})
	return enabled, err
}

// List returns a copy of every switch sorted by lower-cased name.
func (t *Table) List() ([]Switch, error) {
	var out []Switch
	err := t.state.With(func(tb *table) error {
		out = make([]Switch, 0, len(tb.entries))
		for _, s := range tb.entries {
			c := Switch{Name: s.Name, Enabled: s.Enabled}
			if s.IP != nil {
				v := *s.IP
				c.IP = &v
			}
			if s.Port != nil {
				v := *s.Port
				c.Port = &v
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}
