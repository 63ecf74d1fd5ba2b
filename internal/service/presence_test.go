package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/delivery"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/hub"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/kafka"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/mocks"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/persist"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/presence"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/router"
)

func newPresenceService(t *testing.T) (ChatService, *mocks.MockVerifier, *mocks.MockDirectory) {
	t.Helper()
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockVerifier(ctrl)
	directory := mocks.NewMockDirectory(ctrl)
	store := mocks.NewMockMessageStore(ctrl)
	members := mocks.NewMockMembershipLookup(ctrl)
	h := hub.NewHub()

	svc := NewChatService(Deps{
		Hub:       h,
		Verifier:  verifier,
		Router:    router.New(members, router.Config{EchoToSender: true}),
		Gateway:   persist.NewGateway(store, time.Second),
		Fanout:    delivery.NewFanout(h),
		Store:     store,
		Members:   members,
		Directory: directory,
		Producer:  kafka.NopProducer{},
	}, Config{})
	return svc, verifier, directory
}

func TestChatService_PresenceFollowsRegistry(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, verifier, directory := newPresenceService(t)

	verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(alice, nil).Times(2)
	directory.EXPECT().MarkOnline(gomock.Any(), alice.UserID).Return(nil).Times(2)

	first, second := newClient("c1"), newClient("c2")
	req.NoError(svc.HandleAuth(ctx, first, "t1"))
	req.NoError(svc.HandleAuth(ctx, second, "t2"))

	// The superseded connection closing leaves presence alone
	req.NoError(svc.HandleDisconnect(ctx, first))

	// The live one clears it
	directory.EXPECT().MarkOffline(gomock.Any(), alice.UserID).Return(nil)
	req.NoError(svc.HandleDisconnect(ctx, second))
}

func TestChatService_PresenceErrorsDoNotBreakHandshake(t *testing.T) {
	req := require.New(t)
	svc, verifier, directory := newPresenceService(t)

	verifier.EXPECT().Verify(gomock.Any(), "t").Return(bob, nil)
	directory.EXPECT().MarkOnline(gomock.Any(), bob.UserID).Return(errors.New("redis down"))

	c := newClient("c1")
	req.NoError(svc.HandleAuth(context.Background(), c, "t"))
	req.True(c.Session.IsAuthenticated())
	req.Equal(1, svc.ConnectionCount())
}

func TestChatService_PresenceLookup(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _, directory := newPresenceService(t)

	directory.EXPECT().Lookup(gomock.Any(), int64(5)).Return("node-b:3000", nil)
	status, err := svc.Presence(ctx, 5)
	req.NoError(err)
	req.True(status.Online)
	req.False(status.Local)
	req.Equal("node-b:3000", status.Address)

	directory.EXPECT().Lookup(gomock.Any(), int64(6)).Return("", presence.ErrNotOnline)
	status, err = svc.Presence(ctx, 6)
	req.NoError(err)
	req.False(status.Online)

	directory.EXPECT().Lookup(gomock.Any(), int64(7)).Return("", errors.New("redis down"))
	_, err = svc.Presence(ctx, 7)
	req.Error(err)
}

func TestChatService_StartFailsWithHeartbeat(t *testing.T) {
	req := require.New(t)
	svc, _, directory := newPresenceService(t)

	directory.EXPECT().StartHeartbeat(gomock.Any()).Return(errors.New("boom"))
	req.Error(svc.Start(context.Background()))
}

func TestChatService_CloseRacingHandshakeKeepsUserOnline(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, verifier, directory := newPresenceService(t)

	var (
		mu    sync.Mutex
		calls []string
	)
	record := func(call string) {
		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()
	}
	recorded := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), calls...)
	}

	verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(alice, nil).Times(2)
	offlineStarted := make(chan struct{})
	unblock := make(chan struct{})
	directory.EXPECT().MarkOnline(gomock.Any(), alice.UserID).DoAndReturn(
		func(context.Context, int64) error {
			record("online")
			return nil
		}).Times(2)
	directory.EXPECT().MarkOffline(gomock.Any(), alice.UserID).DoAndReturn(
		func(context.Context, int64) error {
			close(offlineStarted)
			<-unblock
			record("offline")
			return nil
		})

	// Given alice's only connection is closing and its presence clear is slow
	old := newClient("old")
	req.NoError(svc.HandleAuth(ctx, old, "t1"))
	go func() { _ = svc.HandleDisconnect(ctx, old) }()
	<-offlineStarted

	// When she reconnects at that moment
	fresh := newClient("fresh")
	authDone := make(chan error, 1)
	go func() { authDone <- svc.HandleAuth(ctx, fresh, "t2") }()

	// Then the new handshake waits for the clear to finish
	select {
	case <-authDone:
		req.FailNow("handshake interleaved with the presence clear")
	case <-time.After(50 * time.Millisecond):
	}

	close(unblock)
	req.NoError(<-authDone)

	// And presence ends online
	req.Equal([]string{"online", "offline", "online"}, recorded())
	req.Equal(1, svc.ConnectionCount())
}
