package dynamost

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/lifeomic/dynamost/pkg/session"
)

// AccountConfig describes a role to assume for tables in another AWS account.
type AccountConfig struct {
	RoleARN    string
	ExternalID string
	Region     string
	// SessionDuration caps the assumed role session. Defaults to one hour.
	SessionDuration time.Duration
}

// CrossAccountSessions builds and caches sessions for tables owned by other
// AWS accounts, assuming a configured role per account alias.
type CrossAccountSessions struct {
	accounts map[string]AccountConfig
	base     aws.Config

	mu    sync.Mutex
	cache map[string]*accountSession
}

type accountSession struct {
	session *session.Session
	expiry  time.Time
}

// NewCrossAccountSessions loads base credentials and prepares a session cache
// for the configured accounts.
func NewCrossAccountSessions(accounts map[string]AccountConfig) (*CrossAccountSessions, error) {
	base, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load base AWS config: %w", err)
	}
	return &CrossAccountSessions{
		accounts: accounts,
		base:     base,
		cache:    make(map[string]*accountSession),
	}, nil
}

// Account returns a session for the named account, assuming its role on
// first use and again shortly before the cached credentials expire.
func (c *CrossAccountSessions) Account(alias string) (*session.Session, error) {
	account, ok := c.accounts[alias]
	if !ok {
		return nil, fmt.Errorf("unknown account alias %q", alias)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.cache[alias]; ok && time.Now().Before(cached.expiry) {
		return cached.session, nil
	}

	duration := account.SessionDuration
	if duration <= 0 {
		duration = time.Hour
	}

	provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(c.base), account.RoleARN,
		func(o *stscreds.AssumeRoleOptions) {
			if account.ExternalID != "" {
				o.ExternalID = &account.ExternalID
			}
			o.RoleSessionName = "dynamost-" + alias
			o.Duration = duration
		})

	sess, err := session.NewSession(&session.Config{
		Region:              account.Region,
		CredentialsProvider: aws.NewCredentialsCache(provider),
	})
	if err != nil {
		return nil, fmt.Errorf("create session for account %q: %w", alias, err)
	}

	c.cache[alias] = &accountSession{
		session: sess,
		// Refresh ahead of expiry so in-flight requests never straddle it.
		expiry: time.Now().Add(duration - 5*time.Minute),
	}
	return sess, nil
}
