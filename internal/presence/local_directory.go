package presence

import (
	"context"
	"sync"
)

// LocalDirectory keeps presence in process memory. Used when Redis is
// disabled; every online user lives on this instance.
type LocalDirectory struct {
	address string
	online  map[int64]struct{}
	mu      sync.RWMutex
}

func NewLocalDirectory(advertiseAddress string) *LocalDirectory {
	return &LocalDirectory{
		address: advertiseAddress,
		online:  make(map[int64]struct{}),
	}
}

func (d *LocalDirectory) MarkOnline(ctx context.Context, userID int64) error {
	d.mu.Lock()
	d.online[userID] = struct{}{}
	d.mu.Unlock()
	return nil
}

func (d *LocalDirectory) MarkOffline(ctx context.Context, userID int64) error {
	d.mu.Lock()
	delete(d.online, userID)
	d.mu.Unlock()
	return nil
}

func (d *LocalDirectory) Lookup(ctx context.Context, userID int64) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, ok := d.online[userID]; !ok {
		return "", ErrNotOnline
	}
	return d.address, nil
}

func (d *LocalDirectory) StartHeartbeat(ctx context.Context) error { return nil }

func (d *LocalDirectory) StopHeartbeat() {}

func (d *LocalDirectory) Close() error { return nil }
