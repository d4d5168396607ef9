package supplier

import "sort"

// Registry holds the configured supplier clients by name.
type Registry struct {
	clients map[string]Client
}

func NewRegistry(clients ...Client) *Registry {
	registry := &Registry{clients: make(map[string]Client, len(clients))}
	for _, client := range clients {
		if client == nil {
			continue
		}
		registry.clients[client.Name()] = client
	}
	return registry
}

func (r *Registry) Get(name string) (Client, error) {
	client, ok := r.clients[name]
	if !ok {
		return nil, ErrSupplierNotFound
	}
	return client, nil
}

func (r *Registry) All() []Client {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	clients := make([]Client, 0, len(names))
	for _, name := range names {
		clients = append(clients, r.clients[name])
	}
	return clients
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
