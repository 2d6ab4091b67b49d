package config

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/alexisbeaulieu97/commons/internal/logger"
	"github.com/alexisbeaulieu97/commons/internal/resource"
	commonserrors "github.com/alexisbeaulieu97/commons/pkg/errors"
)

// Provider loads the upgrade document from a resource once and serves the
// cached copy afterwards. It is safe for concurrent use: callers racing on
// the first access share a single load. A failed load is not cached.
type Provider struct {
	loader resource.Loader
	path   string
	log    *logger.Logger

	doc   atomic.Pointer[Document]
	group singleflight.Group
	loads atomic.Int64
}

// NewProvider returns a provider reading path through loader.
func NewProvider(loader resource.Loader, path string, log *logger.Logger) *Provider {
	return &Provider{loader: loader, path: path, log: log.With("config", path)}
}

// Configuration returns the parsed document, loading it on first use.
func (p *Provider) Configuration(ctx context.Context) (*Document, error) {
	if doc := p.doc.Load(); doc != nil {
		return doc, nil
	}

	// The shared load runs detached from ctx; each caller stops waiting on
	// its own cancellation.
	loadCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(p.path, func() (any, error) {
		if doc := p.doc.Load(); doc != nil {
			return doc, nil
		}
		doc, err := p.load(loadCtx)
		if err != nil {
			return nil, err
		}
		p.doc.Store(doc)
		return doc, nil
	})

	select {
	case <-ctx.Done():
		return nil, commonserrors.NewConfigurationError(fmt.Sprintf("loading %s interrupted", p.path), ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Document), nil
	}
}

// Reset drops the cached document so the next call reloads it.
func (p *Provider) Reset() {
	p.doc.Store(nil)
}

// Loads reports how many times the backing resource was read and parsed.
func (p *Provider) Loads() int64 {
	return p.loads.Load()
}

// Path returns the resource path the provider reads.
func (p *Provider) Path() string {
	return p.path
}

func (p *Provider) load(ctx context.Context) (*Document, error) {
	p.loads.Add(1)
	p.log.Debug("loading upgrade configuration")

	data, err := resource.ReadAll(ctx, p.loader, p.path)
	if err != nil {
		p.log.Error(err, "unable to read upgrade configuration")
		return nil, commonserrors.NewConfigurationError(fmt.Sprintf("unable to read %s", p.path), err)
	}

	doc, err := Parse(p.path, data)
	if err != nil {
		p.log.Error(err, "invalid upgrade configuration")
		return nil, commonserrors.NewConfigurationError(fmt.Sprintf("invalid configuration in %s", p.path), err)
	}

	p.log.Info("upgrade configuration loaded")
	return doc, nil
}
