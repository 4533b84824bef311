/*
Package slotreg is a concurrent dependency-resolution registry: it stores
type-to-binding mappings, serves lookups under concurrent read/write load,
scopes instance lifetimes, and keeps runtime dependency-graph diagnostics.

Every registered type gets a dense integer slot, and every scope keeps its
bindings in an immutable slot-indexed snapshot swapped atomically on
mutation. Resolving an already-materialized instance is one atomic pointer
load with no lock and no allocation; writers retry against a copy-on-write
snapshot.

To install slotreg:

	go get -u github.com/mkravchuk/slotreg

How to use:

	type Logger interface {
		Log(msg string)
	}

	type Repo interface {
		Find(id string) (Record, error)
	}

	reg := slotreg.NewRegistry()
	defer reg.Close()

	_, err := slotreg.Register(reg, slotreg.Singleton,
		func(ctx context.Context) (Logger, error) {
			return newLogger(), nil
		})
	if err != nil {
		// handle error
	}

	_, err = slotreg.Register(reg, slotreg.Request,
		func(ctx context.Context) (Repo, error) {
			logger, err := slotreg.Resolve[Logger](ctx, reg, slotreg.Singleton)
			if err != nil {
				return nil, err
			}

			return newRepo(logger), nil
		})
	if err != nil {
		// handle error
	}

	func MyRequestHandler(w http.ResponseWriter, req *http.Request) {
		reg.SetScopeContext(slotreg.Request, slotreg.NewContextID())
		defer reg.ClearScopeContext(slotreg.Request)

		repo, err := slotreg.Resolve[Repo](req.Context(), reg, slotreg.Request)
		if err != nil {
			// handle error
		}

		// use repo
	}

Lifetime scopes:

	slotreg.Transient
	slotreg.Singleton
	slotreg.Session
	slotreg.Request
	slotreg.Screen

Singleton factories run at most once per process lifetime: concurrent first
resolutions coalesce into a single in-flight construction and every caller
observes the same instance. Cancelling one waiter never cancels the
construction while others still wait; only the last waiter's cancellation
cancels the factory.

Session, Request and Screen scopes cache per context-id, set by the owning
lifecycle code through SetScopeContext and ClearScopeContext. With no
context-id set, resolution degrades to one-shot uncached construction.

Resolution has three entry points:

  - slotreg.Resolve — returns *NotBoundError on absence, caller decides.
  - slotreg.TryResolve — optional; absence and failure yield false.
  - slotreg.MustResolve — fatal; panics on absence or failure.

Diagnostics:

  - (*Registry).StatsSnapshot — debounced usage counters and graph text.
  - (*Registry).DetectCycles — on-demand DFS over recorded edges.
  - slotreg.NewCollector — prometheus collector over the stats snapshot.

Dependency-edge recording is opt-in (WithRecording or SetRecording), since
the bookkeeping adds a small constant cost per resolution.
*/
package slotreg
