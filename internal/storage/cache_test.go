package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/emma/internal/models"
)

func TestTermsCache_LoadSurvivesCancelledLeader(t *testing.T) {
	c := newTermsCache()
	key := termsKey{bg: 0, fg: 1}
	want := []models.RankedTerm{{ConceptID: "C0004096", Concept: "Asthma"}}

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	loadErr := make(chan error, 1)
	load := func(ctx context.Context) ([]models.RankedTerm, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		loadErr <- ctx.Err()
		return want, nil
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, _, err := c.getOrLoad(leaderCtx, key, load)
		leaderDone <- err
	}()
	<-started

	type result struct {
		terms []models.RankedTerm
		err   error
	}
	followerDone := make(chan result, 1)
	go func() {
		terms, _, err := c.getOrLoad(context.Background(), key, load)
		followerDone <- result{terms, err}
	}()

	cancelLeader()
	select {
	case err := <-leaderDone:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("leader: got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled leader kept waiting for the load")
	}

	close(release)
	select {
	case res := <-followerDone:
		if res.err != nil {
			t.Fatalf("follower with a live context failed: %v", res.err)
		}
		if len(res.terms) != 1 || res.terms[0].ConceptID != want[0].ConceptID {
			t.Errorf("follower terms: %+v", res.terms)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("follower never received the terms")
	}

	if err := <-loadErr; err != nil {
		t.Errorf("load context was cancelled with the leader: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("load ran %d times, want 1", n)
	}
	if terms, ok := c.get(key); !ok || len(terms) != 1 {
		t.Error("completed load should be cached")
	}
}

func TestTermsCache_FailedLoadNotCached(t *testing.T) {
	c := newTermsCache()
	key := termsKey{bg: 0, fg: 2}
	boom := errors.New("boom")

	_, _, err := c.getOrLoad(context.Background(), key, func(context.Context) ([]models.RankedTerm, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	terms, hit, err := c.getOrLoad(context.Background(), key, func(context.Context) ([]models.RankedTerm, error) {
		return []models.RankedTerm{}, nil
	})
	if err != nil || hit || terms == nil {
		t.Errorf("retry after failure: terms=%v hit=%v err=%v", terms, hit, err)
	}
}
