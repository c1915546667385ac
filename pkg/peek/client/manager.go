package client

import (
	"fmt"
	"strings"
	"sync"

	perrors "github.com/sambeau/peek/pkg/peek/errors"
	"github.com/sambeau/peek/pkg/peek/vm"
)

// Manager holds the session's connections and which one is current.
type Manager struct {
	mu      sync.Mutex
	clients []*Client
	current int // -1 when empty
}

func NewManager() *Manager {
	return &Manager{current: -1}
}

// Add appends a client and makes it current.
func (m *Manager) Add(c *Client) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients = append(m.clients, c)
	m.current = len(m.clients) - 1
	return m.current
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Index returns the index of the current client, -1 if there is none.
func (m *Manager) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CurrentClient returns the current client.
func (m *Manager) CurrentClient() (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current < 0 {
		return nil, perrors.New("STATE-0001", nil)
	}
	return m.clients[m.current], nil
}

// Client returns the client at index i.
func (m *Manager) Client(i int) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(i); err != nil {
		return nil, err
	}
	return m.clients[i], nil
}

// IndexOf finds the index of the client with the given name.
func (m *Manager) IndexOf(name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.clients {
		if c.Name() == name {
			return i, nil
		}
	}
	return -1, perrors.New("UNDEF-0004", map[string]any{"Name": name})
}

func (m *Manager) check(i int) error {
	if i < 0 || i >= len(m.clients) {
		return perrors.New("STATE-0002", map[string]any{"Index": i})
	}
	return nil
}

// SetCurrent switches the current client.
func (m *Manager) SetCurrent(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(i); err != nil {
		return err
	}
	m.current = i
	return nil
}

// Remove deletes the client at index i. The last client cannot be
// removed. Removing the current client makes the first one current.
func (m *Manager) Remove(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.clients) == 1 {
		return perrors.New("STATE-0003", nil)
	}
	if err := m.check(i); err != nil {
		return err
	}

	m.clients = append(m.clients[:i], m.clients[i+1:]...)
	switch {
	case len(m.clients) == 0:
		m.current = -1
	case i < m.current:
		m.current--
	case i == m.current:
		m.current = 0
	}
	return nil
}

// Rename sets the name of the client at index i.
func (m *Manager) Rename(i int, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(i); err != nil {
		return err
	}
	m.clients[i].SetName(name)
	return nil
}

// Current implements vm.Connections.
func (m *Manager) Current() (vm.Executor, error) {
	return m.CurrentClient()
}

// Get implements vm.Connections.
func (m *Manager) Get(i int) (vm.Executor, error) {
	return m.Client(i)
}

// Lookup implements vm.Connections.
func (m *Manager) Lookup(name string) (vm.Executor, error) {
	i, err := m.IndexOf(name)
	if err != nil {
		return nil, err
	}
	return m.Client(i)
}

// String lists the clients, one per line, marking the current one.
func (m *Manager) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := make([]string, 0, len(m.clients))
	for i, c := range m.clients {
		prefix := " "
		if i == m.current {
			prefix = "*"
		}
		lines = append(lines, fmt.Sprintf("%s %4s %s", prefix, fmt.Sprintf("[%d]", i), c))
	}
	return strings.Join(lines, "\n")
}
