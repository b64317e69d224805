package session

import "sync"

// registry is the connection map keyed by authenticated device id
// (spec.md §4.4's "register the outbound channel in the connection
// map, evicting any prior session for the same id"). Mutated only by
// session accept/close paths; reads for targeted push are safe under
// the same mutex.
type registry struct {
	mu   sync.Mutex
	byID map[string]*Client
}

func newRegistry() *registry {
	return &registry{byID: map[string]*Client{}}
}

func (r *registry) bind(deviceID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old := r.byID[deviceID]; old != nil && old != c {
		safeClose(old.send)
	}
	r.byID[deviceID] = c
}

func (r *registry) unbindIfCurrent(deviceID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byID[deviceID] == c {
		delete(r.byID, deviceID)
	}
}

func (r *registry) get(deviceID string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[deviceID]
	return c, ok
}
