package persist

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/hub"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/repository"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/log"
)

var ErrPersistenceFailure = errors.New("failed to persist message")

const defaultCommitTimeout = 5 * time.Second

// Release is the ordered step of a committed message. Releases run one at
// a time in ascending message id order.
type Release func()

// Prepare runs after a successful commit, outside any shared lock, and
// returns the message's Release.
type Prepare func(msg *domain.Message) Release

// Gateway commits candidates to the store and sequences their hand-off to
// delivery so live delivery follows commit order.
//
// Commits from different senders run concurrently; one sender commits one
// message at a time. Every commit takes a ticket when it starts. A committed
// message records the newest ticket issued at the moment its commit returned
// and is released once all tickets up to that one have finished: any commit
// still running after that point started after ours returned, so its id is
// higher.
type Gateway struct {
	store   repository.MessageStore
	timeout time.Duration
	senders *hub.IdentityLocks

	mu         sync.Mutex
	lastTicket uint64
	doneUpTo   uint64
	finished   map[uint64]struct{}
	pending    []pendingRelease // ascending by msgID

	releaseMu sync.Mutex
}

type pendingRelease struct {
	msgID   int64
	barrier uint64
	release Release
}

func NewGateway(store repository.MessageStore, commitTimeout time.Duration) *Gateway {
	if commitTimeout <= 0 {
		commitTimeout = defaultCommitTimeout
	}
	return &Gateway{
		store:    store,
		timeout:  commitTimeout,
		senders:  hub.NewIdentityLocks(),
		finished: make(map[uint64]struct{}),
	}
}

// Commit stores the candidate. The write is not cancelled when ctx is; it
// is bounded by the commit timeout only.
func (g *Gateway) Commit(ctx context.Context, c *domain.Candidate) (*domain.Message, error) {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	msg, err := g.store.Commit(commitCtx, c)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int64(log.FieldUserID, c.SenderID).Msg("message commit failed")
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return msg, nil
}

// CommitAndDeliver commits the candidate and, only on success, schedules
// the Release returned by prepare. It does not wait for commits of other
// senders: if an earlier commit is still running, the release is run later
// by whichever caller completes the sequence.
func (g *Gateway) CommitAndDeliver(ctx context.Context, c *domain.Candidate, prepare Prepare) (*domain.Message, error) {
	ticket := g.begin()

	unlock := g.senders.Lock(c.SenderID)
	msg, err := g.Commit(ctx, c)
	unlock()
	barrier := g.issued()

	var release Release
	if err == nil && prepare != nil {
		release = prepare(msg)
	}

	g.finish(ticket, barrier, msg, release)
	g.drain()

	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (g *Gateway) begin() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastTicket++
	return g.lastTicket
}

func (g *Gateway) issued() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastTicket
}

func (g *Gateway) finish(ticket, barrier uint64, msg *domain.Message, release Release) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if msg != nil && release != nil {
		i, _ := slices.BinarySearchFunc(g.pending, msg.ID, func(p pendingRelease, id int64) int {
			return cmp.Compare(p.msgID, id)
		})
		g.pending = slices.Insert(g.pending, i, pendingRelease{msgID: msg.ID, barrier: barrier, release: release})
	}

	g.finished[ticket] = struct{}{}
	for {
		if _, ok := g.finished[g.doneUpTo+1]; !ok {
			break
		}
		delete(g.finished, g.doneUpTo+1)
		g.doneUpTo++
	}
}

// drain runs every release whose predecessors are settled. It stops at the
// lowest pending id that is not yet ready.
func (g *Gateway) drain() {
	g.releaseMu.Lock()
	defer g.releaseMu.Unlock()

	g.mu.Lock()
	n := 0
	for n < len(g.pending) && g.pending[n].barrier <= g.doneUpTo {
		n++
	}
	ready := slices.Clone(g.pending[:n])
	g.pending = slices.Delete(g.pending, 0, n)
	g.mu.Unlock()

	for _, p := range ready {
		p.release()
	}
}
