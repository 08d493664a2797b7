package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goOTC/jwt"
	"github.com/MrEthical07/goOTC/store"
	"github.com/MrEthical07/goOTC/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		emails      = flag.Int("emails", 20000, "number of emails to seed with a code")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "otc-load", "key prefix")
	)
	flag.Parse()

	if *emails <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "emails, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	codes := redisstore.NewCodeStore(client, *prefix)
	identities := redisstore.NewIdentityStore(client, *prefix)
	sessions, err := jwt.NewManager(jwt.Config{PrivateKey: []byte("loadtest-secret-loadtest-secret-0")})
	if err != nil {
		fmt.Fprintf(os.Stderr, "session manager: %v\n", err)
		os.Exit(1)
	}

	addresses := make([]string, *emails)
	tokens := make([]string, *emails)
	fmt.Printf("seeding %d emails...\n", *emails)
	startSeed := time.Now()
	now := time.Now()
	for i := range addresses {
		addresses[i] = fmt.Sprintf("user-%d@load.test", i)
		if err := codes.Create(ctx, seedCode(addresses[i], now)); err != nil {
			fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
			os.Exit(1)
		}
		id, err := identities.Upsert(ctx, addresses[i], store.IdentityUpdate{Provider: store.ProviderCode, At: time.Now()})
		if err != nil {
			fmt.Fprintf(os.Stderr, "upsert failed: %v\n", err)
			os.Exit(1)
		}
		if tokens[i], _, err = sessions.Issue(id.ID, id.Email); err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	lookupStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := codes.FindLatestValid(ctx, addresses[r.Intn(len(addresses))], time.Now())
		return err
	})
	upsertStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := identities.Upsert(ctx, addresses[r.Intn(len(addresses))], store.IdentityUpdate{Provider: store.ProviderCode, At: time.Now()})
		return err
	})
	validateStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := sessions.Parse(tokens[r.Intn(len(tokens))])
		return err
	})

	fmt.Println("---- results ----")
	printStats("code lookup", lookupStats)
	printStats("identity upsert", upsertStats)
	printStats("session validate", validateStats)
}

// runPhase executes op ops times across concurrency workers. Upsert
// conflicts on a shared email count as failures.
func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// seedCode stores a placeholder hash; the load test never verifies it.
func seedCode(email string, now time.Time) store.Code {
	return store.Code{
		ID:          uuid.NewString(),
		Email:       email,
		SecretHash:  "$2a$04$loadtestloadtestloadtestloadtestloadtestloadtestloadt",
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
		MaxAttempts: 5,
	}
}
