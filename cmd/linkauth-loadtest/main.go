// Command linkauth-loadtest stresses the single-use guarantees of one-time codes and
// magic links. Each round issues one credential and has many goroutines redeem it at
// once; exactly one redemption per round may succeed.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	goLinkAuth "github.com/MrEthical07/goLinkAuth"
	"github.com/MrEthical07/goLinkAuth/store/memory"
)

func main() {
	var (
		identities = flag.Int("identities", 200, "number of verified identities to seed")
		racers     = flag.Int("racers", 16, "concurrent redemptions per issued credential")
		redisAddr  = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *identities <= 0 || *racers <= 0 {
		fmt.Fprintln(os.Stderr, "identities and racers must be > 0")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := memory.New()
	outbox := newOutbox()
	engine, err := newEngine(client, store, outbox)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	emails := make([]string, *identities)
	fmt.Printf("seeding %d identities...\n", *identities)
	startSeed := time.Now()
	for i := range emails {
		emails[i] = fmt.Sprintf("user-%d@loadtest.local", i)
		if err := store.Create(ctx, &goLinkAuth.Identity{ID: uuid.NewString(), Email: emails[i], Verified: true}); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	otpStats := runOTPRace(ctx, engine, emails, *racers)
	linkStats := runLinkRace(ctx, engine, outbox, emails, *racers)

	fmt.Println("---- results ----")
	printStats("otp", otpStats)
	printStats("link", linkStats)

	if otpStats.violations > 0 || linkStats.violations > 0 {
		fmt.Fprintln(os.Stderr, "single-use violated")
		os.Exit(1)
	}
}

func newEngine(client redis.UniversalClient, store goLinkAuth.CredentialStore, mailer goLinkAuth.Mailer) (*goLinkAuth.Engine, error) {
	cfg := goLinkAuth.DefaultConfig()
	cfg.MagicLink.BaseURL = "https://loadtest.local/callback"
	cfg.Session.SigningMethod = "hs256"
	cfg.Session.PrivateKey = []byte("loadtest-signing-key-0123456789abcdef")
	cfg.RateLimit.MaxAttempts = 0
	cfg.RateLimit.MaxSends = 0

	return goLinkAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithStore(store).
		WithMailer(mailer).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
}

// outbox keeps the most recent magic-link token per recipient.
type outbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newOutbox() *outbox {
	return &outbox{tokens: make(map[string]string)}
}

func (o *outbox) Send(_ context.Context, msg goLinkAuth.Message) error {
	if msg.Kind != goLinkAuth.MessageMagicLink {
		return nil
	}
	for _, field := range strings.Fields(msg.Text) {
		if !strings.HasPrefix(field, "https://") {
			continue
		}
		u, err := url.Parse(field)
		if err != nil {
			return err
		}
		o.mu.Lock()
		o.tokens[msg.To] = u.Query().Get("token")
		o.mu.Unlock()
		return nil
	}
	return fmt.Errorf("no link in message to %s", msg.To)
}

func (o *outbox) token(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tokens[email]
}

type recorder struct {
	mu        sync.Mutex
	latencies []time.Duration
	failures  int64
}

func (r *recorder) add(d time.Duration) {
	r.mu.Lock()
	r.latencies = append(r.latencies, d)
	r.mu.Unlock()
}

// race runs redeem from racers goroutines released together and returns how many
// succeeded.
func race(racers int, rec *recorder, redeem func() bool) int64 {
	var (
		wg    sync.WaitGroup
		wins  int64
		start = make(chan struct{})
	)
	for w := 0; w < racers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			t0 := time.Now()
			ok := redeem()
			rec.add(time.Since(t0))
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	return wins
}

func runOTPRace(ctx context.Context, engine *goLinkAuth.Engine, emails []string, racers int) phaseStats {
	rec := &recorder{latencies: make([]time.Duration, 0, len(emails)*racers)}
	var violations int64

	start := time.Now()
	for _, email := range emails {
		otp, err := engine.SendOTP(ctx, email)
		if err != nil {
			rec.failures++
			continue
		}
		wins := race(racers, rec, func() bool {
			res, err := engine.AuthenticateOTP(ctx, email, otp.Code)
			return err == nil && res.State == goLinkAuth.StateAuthenticated
		})
		if wins != 1 {
			violations++
		}
	}
	return computeStats(time.Since(start), rec.latencies, rec.failures, violations)
}

func runLinkRace(ctx context.Context, engine *goLinkAuth.Engine, box *outbox, emails []string, racers int) phaseStats {
	rec := &recorder{latencies: make([]time.Duration, 0, len(emails)*racers)}
	var violations int64

	start := time.Now()
	for _, email := range emails {
		if _, err := engine.Login(ctx, email); err != nil {
			rec.failures++
			continue
		}
		token := box.token(email)
		wins := race(racers, rec, func() bool {
			res, err := engine.CompleteMagicLink(ctx, token)
			return err == nil && res.State == goLinkAuth.StateAuthenticated
		})
		if wins != 1 {
			violations++
		}
	}
	return computeStats(time.Since(start), rec.latencies, rec.failures, violations)
}

type phaseStats struct {
	total      time.Duration
	ops        int
	failures   int64
	violations int64
	p50        time.Duration
	p95        time.Duration
	p99        time.Duration
	opsPerS    float64
}

func computeStats(total time.Duration, samples []time.Duration, failures, violations int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures, violations: violations}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:      total,
		ops:        len(samples),
		failures:   failures,
		violations: violations,
		p50:        percentile(samples, 50),
		p95:        percentile(samples, 95),
		p99:        percentile(samples, 99),
		opsPerS:    float64(len(samples)) / total.Seconds(),
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
	fmt.Printf("%s: redemptions=%d issue_failures=%d violations=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.violations,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
