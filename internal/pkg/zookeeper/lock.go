package zookeeper

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const lockRoot = "/distributed_locks"

// Locker grants non-blocking leases backed by ephemeral sequential nodes.
// A lease lives as long as the session, so ttl is not used.
type Locker struct {
	conn Conn
	acl  []zk.ACL
}

func NewLocker(conn Conn) *Locker {
	return &Locker{conn: conn, acl: zk.WorldACL(zk.PermAll)}
}

func (l *Locker) ensure(path string) error {
	ok, _, err := l.conn.Exists(path)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := l.conn.Create(path, nil, 0, l.acl); err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

// TryLock creates a sequential node under the lock path and holds the lease
// only if that node sorts first; otherwise the node is removed again.
func (l *Locker) TryLock(_ context.Context, name string, _ time.Duration) (func(context.Context) error, bool, error) {
	lockPath := lockRoot + "/" + name
	if err := l.ensure(lockRoot); err != nil {
		return nil, false, err
	}
	if err := l.ensure(lockPath); err != nil {
		return nil, false, err
	}

	node, err := l.conn.Create(lockPath+"/lock-", nil, zk.FlagEphemeral|zk.FlagSequence, l.acl)
	if err != nil {
		return nil, false, errors.Wrap(err, "create sequential node")
	}
	children, _, err := l.conn.Children(lockPath)
	if err != nil {
		_ = l.conn.Delete(node, -1)
		return nil, false, errors.Wrap(err, "list lock children")
	}
	sort.Strings(children)

	release := func(context.Context) error {
		if err := l.conn.Delete(node, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
			return errors.Wrapf(err, "delete lock node %s", node)
		}
		return nil
	}
	if len(children) == 0 || children[0] != strings.TrimPrefix(node, lockPath+"/") {
		return nil, false, release(context.Background())
	}
	return release, true, nil
}
