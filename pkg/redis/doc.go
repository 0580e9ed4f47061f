// Package redis connects to Redis with go-redis and provides a distributed
// Locker for serializing subscription changes across replicas.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	locker := redis.NewLocker(client, redis.WithLockPrefix(cfg.LockPrefix))
//	svc := subscription.NewService(store, gateway, roles, subscription.WithLocker(locker))
//
// Locks are plain keys set with NX and a TTL. Release compares the stored
// token before deleting, so a holder whose TTL ran out never frees a lock
// someone else has taken since.
package redis
