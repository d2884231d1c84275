// Package resolver turns markup tags into control types and control types
// into metadata, memoizing both.
package resolver

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"viewc/internal/config"
	"viewc/internal/controltree"
	"viewc/internal/diag"
	"viewc/internal/names"
)

// Resolver caches tag and metadata lookups. Safe for concurrent use; every
// key is computed at most once and failures are never cached.
type Resolver struct {
	rules   []config.ControlRule
	locator controltree.ControlLocator
	builder controltree.MetadataBuilder
	html    controltree.ControlType

	mu       sync.RWMutex
	tags     map[string]controltree.ControlType
	metadata map[controltree.ControlType]*controltree.Metadata

	tagFlight  singleflight.Group
	metaFlight singleflight.Group
}

// Options configures New.
type Options struct {
	Rules   []config.ControlRule
	Locator controltree.ControlLocator
	Builder controltree.MetadataBuilder
	// HTMLControl is the control used for tags without a prefix.
	HTMLControl controltree.ControlType
}

// New creates a resolver. Rules are evaluated in the given order.
func New(opts Options) (*Resolver, error) {
	if opts.Locator == nil || opts.Builder == nil {
		return nil, fmt.Errorf("resolver: locator and metadata builder are required")
	}
	if opts.HTMLControl.Type == nil {
		return nil, fmt.Errorf("resolver: HTML control type is required")
	}
	return &Resolver{
		rules:    append([]config.ControlRule(nil), opts.Rules...),
		locator:  opts.Locator,
		builder:  opts.Builder,
		html:     opts.HTMLControl,
		tags:     make(map[string]controltree.ControlType),
		metadata: make(map[controltree.ControlType]*controltree.Metadata),
	}, nil
}

// ResolveControl returns the metadata of <prefix:name> together with the
// arguments its constructor needs. Tags without a prefix are HTML elements:
// the tag name becomes the constructor argument.
func (r *Resolver) ResolveControl(prefix, name string) (*controltree.Metadata, []any, error) {
	if prefix == "" {
		md, err := r.ResolveControlType(r.html)
		if err != nil {
			return nil, nil, err
		}
		return md, []any{name}, nil
	}
	ct, err := r.FindControlType(prefix, name)
	if err != nil {
		return nil, nil, err
	}
	md, err := r.ResolveControlType(ct)
	if err != nil {
		return nil, nil, err
	}
	return md, nil, nil
}

// FindControlType resolves <prefix:name> to a control type through the
// configured rules.
func (r *Resolver) FindControlType(prefix, name string) (controltree.ControlType, error) {
	key := names.Key(prefix, name)
	r.mu.RLock()
	ct, ok := r.tags[key]
	r.mu.RUnlock()
	if ok {
		return ct, nil
	}
	v, err, _ := r.tagFlight.Do(key, func() (any, error) {
		r.mu.RLock()
		ct, ok := r.tags[key]
		r.mu.RUnlock()
		if ok {
			return ct, nil
		}
		ct, err := r.findControlType(prefix, name)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.tags[key] = ct
		r.mu.Unlock()
		Logger().Debug("resolved control", zap.String("tag", prefix+":"+name), zap.String("type", ct.Key()))
		return ct, nil
	})
	if err != nil {
		return controltree.ControlType{}, err
	}
	return v.(controltree.ControlType), nil
}

func (r *Resolver) findControlType(prefix, name string) (controltree.ControlType, error) {
	tag := prefix + ":" + name
	for _, rule := range r.rules {
		if !rule.IsMatch(prefix, name) {
			continue
		}
		if err := rule.Validate(); err != nil {
			return controltree.ControlType{}, err
		}
		if rule.TagName == "" {
			ct, found, err := r.locator.FindCompiledControl(name, rule.Namespace, rule.Assembly)
			if err != nil {
				return controltree.ControlType{}, diag.Wrap(diag.ResolveUnknownTag, tag, err,
					"looking up <%s> in %s", tag, rule.Namespace)
			}
			if !found {
				continue
			}
			return ct, nil
		}
		ct, err := r.locator.FindMarkupControl(rule.Src)
		if err != nil {
			return controltree.ControlType{}, diag.Wrap(diag.ResolveMarkupControl, tag, err,
				"markup control <%s> could not be loaded from %s", tag, rule.Src)
		}
		return ct, nil
	}
	return controltree.ControlType{}, diag.Errorf(diag.ResolveUnknownTag, tag,
		"the control <%s> could not be resolved! Make sure that the tag prefix is registered in the [[markup.controls]] section of %s",
		tag, config.FileName)
}

// ResolveControlType returns the metadata of ct, building it at most once.
func (r *Resolver) ResolveControlType(ct controltree.ControlType) (*controltree.Metadata, error) {
	r.mu.RLock()
	md, ok := r.metadata[ct]
	r.mu.RUnlock()
	if ok {
		return md, nil
	}
	v, err, _ := r.metaFlight.Do(ct.Key(), func() (any, error) {
		r.mu.RLock()
		md, ok := r.metadata[ct]
		r.mu.RUnlock()
		if ok {
			return md, nil
		}
		md, err := r.builder.BuildControlMetadata(ct)
		if err != nil {
			return nil, diag.Wrap(diag.ResolveMetadata, ct.Key(), err, "metadata of %s", ct.Type.Name)
		}
		r.mu.Lock()
		r.metadata[ct] = md
		r.mu.Unlock()
		return md, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*controltree.Metadata), nil
}

// ResolveBinding is the package level ResolveBinding, exposed on the
// resolver for callers holding only a *Resolver.
func (r *Resolver) ResolveBinding(name string) (controltree.BindingParserOptions, error) {
	return ResolveBinding(name)
}

// Rules returns the rules in evaluation order.
func (r *Resolver) Rules() []config.ControlRule {
	return append([]config.ControlRule(nil), r.rules...)
}
