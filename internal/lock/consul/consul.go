// Package consul implements lock.Locker over Consul sessions and KV
// acquire/release, grounded on
// discovery/consul/consul.go's client construction and session-based
// health-check conventions.
package consul

import (
	"context"
	"fmt"

	consul "github.com/hashicorp/consul/api"
	"github.com/google/uuid"
)

type Locker struct {
	client *consul.Client
}

func NewLocker(addr string) (*Locker, error) {
	config := consul.DefaultConfig()
	config.Address = addr

	client, err := consul.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("build consul client: %w", err)
	}

	return &Locker{client: client}, nil
}

func (l *Locker) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	sessionID, _, err := l.client.Session().Create(&consul.SessionEntry{
		Name:      "edgedispatch-" + uuid.New().String(),
		TTL:       "30s",
		Behavior:  consul.SessionBehaviorRelease,
	}, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create consul session: %w", err)
	}

	pair := &consul.KVPair{
		Key:     "edgedispatch/locks/" + key,
		Value:   []byte(sessionID),
		Session: sessionID,
	}

	acquired, _, err := l.client.KV().Acquire(pair, nil)
	if err != nil {
		l.client.Session().Destroy(sessionID, nil)
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	if !acquired {
		l.client.Session().Destroy(sessionID, nil)
		return nil, false, nil
	}

	release := func() {
		l.client.KV().Release(pair, nil)
		l.client.Session().Destroy(sessionID, nil)
	}

	return release, true, nil
}
