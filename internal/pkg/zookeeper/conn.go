package zookeeper

import (
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"

	"ordersaga/internal/pkg/logger"
)

// Conn is the subset of *zk.Conn the lock needs.
type Conn interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	Exists(path string) (bool, *zk.Stat, error)
	Delete(path string, version int32) error
}

// Connect dials the ensemble. Closing the conn ends the session
// and drops every ephemeral lock node it owns.
func Connect(servers []string, sessionTimeout time.Duration) (*zk.Conn, error) {
	if len(servers) == 0 {
		return nil, errors.New("zookeeper: no servers configured")
	}
	conn, events, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "zookeeper: connect %s", strings.Join(servers, ","))
	}
	go func() {
		for ev := range events {
			if ev.State == zk.StateExpired || ev.State == zk.StateDisconnected {
				logger.L().Warn().Str("state", ev.State.String()).Msg("zookeeper session state changed")
			}
		}
	}()
	return conn, nil
}
