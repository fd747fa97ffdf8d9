// Package systemd controls an externally managed worker unit via D-Bus.
// It is only used when a unit name is configured; direct supervision
// does not need systemd.
package systemd

import (
	"context"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Manager handles systemd unit lifecycle operations via D-Bus.
type Manager struct {
	conn *dbus.Conn
	unit string
}

// NewManager connects to systemd and binds to the given unit name.
// The user flag selects a user-session connection instead of the
// system bus.
func NewManager(ctx context.Context, unit string, user bool) (*Manager, error) {
	var conn *dbus.Conn
	var err error
	if user {
		conn, err = dbus.NewUserConnectionContext(ctx)
	} else {
		conn, err = dbus.NewSystemConnectionContext(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &Manager{conn: conn, unit: unit}, nil
}

// Unit returns the bound unit name.
func (m *Manager) Unit() string {
	return m.unit
}

// Status retrieves the ActiveState property of the worker unit.
func (m *Manager) Status(ctx context.Context) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, m.unit, "ActiveState")
	if err != nil {
		return "", err
	}
	return prop.Value.String(), nil
}

// Start starts the worker unit using the replace mode.
func (m *Manager) Start(ctx context.Context) error {
	_, err := m.conn.StartUnitContext(ctx, m.unit, "replace", nil)
	return err
}

// Stop stops the worker unit using the replace mode.
func (m *Manager) Stop(ctx context.Context) error {
	_, err := m.conn.StopUnitContext(ctx, m.unit, "replace", nil)
	return err
}

// Restart restarts the worker unit using the replace mode.
func (m *Manager) Restart(ctx context.Context) error {
	_, err := m.conn.RestartUnitContext(ctx, m.unit, "replace", nil)
	return err
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
