// Package redis stores OIDC users and sign-in state in Redis.
//
// Storage implements usermanager.Store on top of a go-redis client. Keys are
// namespaced by a prefix so that a user store and a state store can share
// one database, and Keys walks them with SCAN. Remove uses GETDEL, so a
// state entry can be consumed exactly once even with several processes
// handling callbacks.
//
// Connect dials the server described by Config and retries until it answers
// or the connect timeout elapses. Healthcheck returns a check suitable for
// readiness endpoints.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	um, err := usermanager.New(settings,
//		usermanager.WithUserStore(redis.NewStorageWithConfig(client, cfg)),
//		usermanager.WithStateStore(redis.NewStorage(client, redis.WithKeyPrefix("oidc:state:"))),
//	)
//
// Config fields are read from REDIS_* environment variables by pkg/config.
// An empty REDIS_URL disables Redis and leaves the in-memory stores in place.
//
// # Errors
//
// Connect and Healthcheck join sentinel errors such as ErrNotReady with
// the underlying go-redis error, so both can be matched with errors.Is.
package redis
