package server

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goOTC/internal/server/config"
	"github.com/MrEthical07/goOTC/store"
	"github.com/MrEthical07/goOTC/store/memory"
	"github.com/MrEthical07/goOTC/store/mongostore"
	"github.com/MrEthical07/goOTC/store/pgstore"
	"github.com/MrEthical07/goOTC/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// backend bundles the stores for one Config.Store value. close releases
// connections and embedded servers.
type backend struct {
	codes      store.CodeStore
	identities store.IdentityStore
	close      func()
}

func openBackend(ctx context.Context, c *config.Config) (*backend, error) {
	switch c.Store {
	case config.StoreMemory:
		return &backend{
			codes:      memory.NewCodeStore(),
			identities: memory.NewIdentityStore(),
			close:      func() {},
		}, nil

	case config.StoreMiniredis:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		b := redisBackend(client, c.RedisPrefix)
		b.close = func() {
			_ = client.Close()
			mr.Close()
		}
		return b, nil

	case config.StoreRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{c.RedisAddr}})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		b := redisBackend(client, c.RedisPrefix)
		b.close = func() { _ = client.Close() }
		return b, nil

	case config.StoreMongo:
		return openMongo(ctx, c)

	case config.StorePostgres:
		db, err := pgstore.Open(ctx, c.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pgstore.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &backend{
			codes:      pgstore.NewCodeStore(db),
			identities: pgstore.NewIdentityStore(db),
			close:      func() { _ = db.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("unknown store %q", c.Store)
	}
}

func redisBackend(client redis.UniversalClient, prefix string) *backend {
	return &backend{
		codes:      redisstore.NewCodeStore(client, prefix),
		identities: redisstore.NewIdentityStore(client, prefix),
	}
}

func openMongo(ctx context.Context, c *config.Config) (*backend, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	closeClient := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	}
	if err := client.Ping(ctx, nil); err != nil {
		closeClient()
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(c.MongoDatabase)
	codes := db.Collection(mongostore.DefaultCodesCollection)
	identities := db.Collection(mongostore.DefaultIdentitiesCollection)
	if err := mongostore.EnsureIndexes(ctx, codes, identities); err != nil {
		closeClient()
		return nil, err
	}

	return &backend{
		codes:      mongostore.NewCodeStore(codes),
		identities: mongostore.NewIdentityStore(identities),
		close:      closeClient,
	}, nil
}
