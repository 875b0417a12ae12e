package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/hollow/internal/compiler"
	"github.com/roach88/hollow/internal/session"
	"github.com/roach88/hollow/internal/store"
)

// openStore opens the configured session database.
func (o *RootOptions) openStore() (*store.Store, error) {
	st, err := store.Open(o.cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("opening database %s", o.cfg.DB), err)
	}
	return st, nil
}

// withStore runs fn against the open session database.
func (o *RootOptions) withStore(fn func(st *store.Store) error) error {
	st, err := o.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

// mutate loads a session, runs fn and saves the result. The session is
// saved even when fn fails, since a rejected request can still have
// changed the graph (a conflicted fill leaves its dependents marked).
// Pending suggestions finish before the snapshot is taken.
func (o *RootOptions) mutate(ctx context.Context, st *store.Store, sessionID string, fn func(*session.Session) error) error {
	sess, err := st.Load(ctx, sessionID, o.sessionOptions()...)
	if err != nil {
		return err
	}
	defer sess.Close()

	runErr := fn(sess)
	sess.SuggestAll()
	if err := sess.Wait(ctx); err != nil {
		return err
	}
	if err := st.Save(ctx, sess); err != nil {
		return err
	}
	return runErr
}

// view loads a session read-only.
func (o *RootOptions) view(ctx context.Context, st *store.Store, sessionID string, fn func(*session.Session) error) error {
	sess, err := st.Load(ctx, sessionID, o.sessionOptions()...)
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(sess)
}

// compileDeclaration compiles and validates a CUE hole declaration.
// existing names holes already in the target session.
func compileDeclaration(path string, existing ...string) (*compiler.Declaration, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("declaration not found: %s", path), err)
	}
	return compiler.CompileFile(path, existing...)
}
