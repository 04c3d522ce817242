package clverify

import (
	"context"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/hashicorp/vault/sdk/framework"
	"github.com/hashicorp/vault/sdk/helper/locksutil"
	"github.com/hashicorp/vault/sdk/logical"

	"clverify/verifier"
)

// Factory creates a new backend implementing the logical.Backend interface
func Factory(ctx context.Context, conf *logical.BackendConfig) (logical.Backend, error) {
	b, err := Backend(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err := b.Setup(ctx, conf); err != nil {
		return nil, err
	}
	return b, nil
}

// FactoryType returns the factory
func FactoryType(backendType logical.BackendType) logical.Factory {
	return func(ctx context.Context, conf *logical.BackendConfig) (logical.Backend, error) {
		b, err := Backend(ctx, conf)
		if err != nil {
			return nil, err
		}
		b.BackendType = backendType
		if err = b.Setup(ctx, conf); err != nil {
			return nil, err
		}
		return b, nil
	}
}

// Backend returns a new Backend framework struct
func Backend(ctx context.Context, conf *logical.BackendConfig) (*backend, error) {
	var b backend
	b.Backend = &framework.Backend{
		Help:        strings.TrimSpace(backendHelp),
		BackendType: logical.TypeLogical,

		PathsSpecial: &logical.Paths{
			Unauthenticated: []string{},

			Root: []string{
				configPath,
			},

			SealWrapStorage: []string{
				configPath,
			},
		},

		Paths: framework.PathAppend(
			pathConfig(&b),
			pathIssuerKeys(&b),
			pathCredDefs(&b),
			pathNonce(&b),
			pathVerify(&b),
			pathVerifyPredicate(&b),
			pathCatalog(&b),
		),

		InitializeFunc: b.initialize,

		Secrets: []*framework.Secret{},
	}

	b.storage = conf.StorageView
	b.metrics = newMetrics(b.openInteractions)
	b.keyLocks = locksutil.CreateLocks()

	cfg := defaultConfig()
	if err := b.apply(cfg); err != nil {
		return nil, err
	}

	return &b, nil
}

type backend struct {
	*framework.Backend

	storage logical.Storage
	metrics *metrics

	// per issuer key id, orders storage loads against writes and deletes
	keyLocks []*locksutil.LockEntry

	// guards config, verifier and keyCache, which are swapped together
	lock     sync.RWMutex
	config   *pluginConfig
	verifier *verifier.Verifier
	keyCache *lru.Cache
}

// apply installs cfg, rebuilding the verifier and the issuer key cache.
// Nonces issued under the previous configuration are dropped.
func (b *backend) apply(cfg *pluginConfig) error {
	keyCache, err := lru.New(cfg.KeyCacheSize)
	if err != nil {
		return err
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	b.config = cfg
	b.keyCache = keyCache
	// the verify handler resolves credential definitions itself
	b.verifier = verifier.New(verifierID, nil, &issuerKeyStore{b: b},
		verifier.WithHook(&pluginHook{b: b}),
		verifier.WithNonceTTL(cfg.NonceTTL),
	)
	return nil
}

func (b *backend) currentVerifier() *verifier.Verifier {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.verifier
}

func (b *backend) currentConfig() *pluginConfig {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.config
}

func (b *backend) cache() *lru.Cache {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.keyCache
}

func (b *backend) openInteractions() float64 {
	v := b.currentVerifier()
	if v == nil {
		return 0
	}
	return float64(v.OpenInteractions())
}

const backendHelp = `
The CL verifier backend stores issuer public keys and credential
definitions, hands out single-use nonces and checks anonymous-credential
proofs (equality and predicate proofs) against them.
`
