//go:build integration

package etcdtest

import (
	"context"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func TestStartEtcd(t *testing.T) {
	ctx := context.Background()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)

	client, teardown, err := StartEtcd(pool)
	require.NoError(t, err)
	defer teardown()

	resp, err := client.Get(ctx, "/pinger/", clientv3.WithPrefix())
	require.NoError(t, err)
	require.Empty(t, resp.Kvs)

	// Keys attached to a lease disappear once it expires, which lock
	// sessions depend on.
	lease, err := client.Grant(ctx, 1)
	require.NoError(t, err)

	_, err = client.Put(ctx, "/pinger/locks/test", "held", clientv3.WithLease(lease.ID))
	require.NoError(t, err)

	resp, err = client.Get(ctx, "/pinger/locks/test")
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 1)
	require.Equal(t, "held", string(resp.Kvs[0].Value))

	require.Eventually(t, func() bool {
		resp, err := client.Get(ctx, "/pinger/locks/test")
		return err == nil && len(resp.Kvs) == 0
	}, 10*time.Second, 250*time.Millisecond)
}
