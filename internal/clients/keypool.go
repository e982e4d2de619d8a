package clients

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/marketpipe/internal/domain"
)

const (
	healthMax            = 100
	healthRecoverOK      = 10
	healthPenaltyLimited = 30
	healthPenaltyFailure = 10
)

// credential is one API key with its own minute and day budgets plus a
// health score in [0, 100]. Health drives selection; budgets drive
// admissibility. A key is never slept on: an inadmissible key is simply
// skipped this call.
type credential struct {
	key     string
	limiter *rate.Limiter

	callsToday int
	dayStart   time.Time

	health              int
	consecutiveFailures int
	disabled            bool

	// A rate_limited response empties the minute budget immediately, no
	// matter how many tokens the local limiter thinks remain. The provider
	// is the authority on its own limits.
	blockedUntil time.Time
}

// Pool hands out credentials for one provider. Acquire picks the healthiest
// admissible key; Report feeds each call's outcome back so budgets and
// health stay honest.
type Pool struct {
	mu       sync.Mutex
	provider string
	creds    []*credential
	perDay   int
	loc      *time.Location

	totalCalls int64

	log zerolog.Logger
	now func() time.Time
}

// NewPool builds a pool from raw key strings. perMinute and perDay of zero
// mean unlimited for that window. loc anchors the daily-quota reset to
// local midnight; nil means UTC.
func NewPool(provider string, keys []string, perMinute, perDay int, loc *time.Location, log zerolog.Logger) *Pool {
	if loc == nil {
		loc = time.UTC
	}
	p := &Pool{
		provider: provider,
		perDay:   perDay,
		loc:      loc,
		log:      log.With().Str("client", provider).Logger(),
		now:      time.Now,
	}
	for _, key := range keys {
		limit := rate.Inf
		burst := 1
		if perMinute > 0 {
			limit = rate.Limit(float64(perMinute) / 60.0)
			burst = perMinute
		}
		p.creds = append(p.creds, &credential{
			key:     key,
			limiter: rate.NewLimiter(limit, burst),
			health:  healthMax,
		})
	}
	return p
}

// Provider returns the pool's provider name.
func (p *Pool) Provider() string { return p.provider }

// TotalCalls returns how many credentials have been handed out so far.
func (p *Pool) TotalCalls() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalCalls
}

// Acquire returns the key to use for the next call, or
// domain.ErrNoCredentialAvailable when every key is disabled or out of
// budget right now. It never blocks.
func (p *Pool) Acquire() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	var best *credential
	for _, c := range p.creds {
		if !p.admissible(c, now) {
			continue
		}
		if best == nil || c.health > best.health ||
			(c.health == best.health && c.limiter.TokensAt(now) > best.limiter.TokensAt(now)) {
			best = c
		}
	}
	if best == nil {
		return "", domain.ErrNoCredentialAvailable
	}

	// Consume the minute token and count the day's call at hand-out time so
	// a crashed call still spends its budget.
	best.limiter.AllowN(now, 1)
	best.callsToday++
	p.totalCalls++

	return best.key, nil
}

func (p *Pool) admissible(c *credential, now time.Time) bool {
	if c.disabled {
		return false
	}
	if now.Before(c.blockedUntil) {
		return false
	}
	if c.dayStart.IsZero() {
		c.dayStart = now
	} else if !now.Before(p.dayRollover(c.dayStart)) {
		c.dayStart = now
		c.callsToday = 0
	}
	if p.perDay > 0 && c.callsToday >= p.perDay {
		return false
	}
	return c.limiter.TokensAt(now) >= 1
}

// dayRollover returns the local midnight that ends the day containing t.
// Daily quotas reset on the calendar day, not a rolling 24 hours.
func (p *Pool) dayRollover(t time.Time) time.Time {
	lt := t.In(p.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day()+1, 0, 0, 0, 0, p.loc)
}

// Report feeds a call's outcome back into the credential that made it.
// not_found counts as a healthy call; the provider answered, the ticker is
// just gone.
func (p *Pool) Report(key string, outcome Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var c *credential
	for _, cand := range p.creds {
		if cand.key == key {
			c = cand
			break
		}
	}
	if c == nil {
		return
	}

	now := p.now()
	switch outcome {
	case OutcomeOK, OutcomeNotFound:
		c.consecutiveFailures = 0
		c.health += healthRecoverOK
		if c.health > healthMax {
			c.health = healthMax
		}
	case OutcomeRateLimited:
		c.consecutiveFailures++
		c.health -= healthPenaltyLimited
		c.blockedUntil = now.Truncate(time.Minute).Add(time.Minute)
		p.log.Warn().Str("provider", p.provider).Msg("Credential rate limited, minute budget emptied")
	case OutcomeTransient:
		c.consecutiveFailures++
		c.health -= healthPenaltyFailure
	case OutcomeAuthError:
		c.disabled = true
		c.health = 0
		p.log.Error().Str("provider", p.provider).Msg("Credential rejected, disabled for this run")
	}
	if c.health < 0 {
		c.health = 0
	}
}

// Exhausted reports whether no credential can serve a call right now.
func (p *Pool) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for _, c := range p.creds {
		if p.admissible(c, now) {
			return false
		}
	}
	return true
}
