package asyncx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

func startMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		s.Close()
	})
	return rdb
}

func pollUntil(t *testing.T, timeout time.Duration, f func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := f()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("timeout")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

type P struct {
	N int `json:"n"`
}

func TestClient_SubmitAndPoll_SuccessAndFailure(t *testing.T) {
	rdb := startMiniRedis(t)
	logger := slog.New(slog.DiscardHandler)

	processor := NewProcessor(rdb, ProcessorConfig{Concurrency: 5, Queues: map[string]int{"default": 1}}, logger)
	mux := asynq.NewServeMux()
	mux.Handle("it:ok", HandleJSON(func(ctx context.Context, p P) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return map[string]int{"double": p.N * 2}, nil
	}))
	mux.Handle("it:fail", HandleJSON(func(ctx context.Context, p P) (any, error) {
		return nil, errors.New("boom")
	}))

	if err := processor.Start(mux); err != nil {
		t.Fatalf("start processor: %v", err)
	}
	defer processor.Shutdown()

	client := NewClient(rdb, ClientOptions{Queue: "default", Retention: time.Hour})
	ctx := context.Background()

	okJob, err := client.Submit(ctx, "it:ok", P{N: 21})
	if err != nil {
		t.Fatalf("submit ok: %v", err)
	}
	failJob, err := client.Submit(ctx, "it:fail", P{N: 2})
	if err != nil {
		t.Fatalf("submit fail: %v", err)
	}
	if okJob.ID == "" || okJob.Queue != "default" {
		t.Fatalf("unexpected handle: %#v", okJob)
	}

	var okState JobState
	if err := pollUntil(t, 5*time.Second, func() (bool, error) {
		st, err := client.Poll(ctx, okJob)
		okState = st
		return st.State == StateSucceeded, err
	}); err != nil {
		t.Fatalf("ok job did not complete: %v (last=%#v)", err, okState)
	}
	var res map[string]int
	if err := json.Unmarshal(okState.Result, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res["double"] != 42 {
		t.Fatalf("want double=42 got=%v", res)
	}

	var failState JobState
	if err := pollUntil(t, 5*time.Second, func() (bool, error) {
		st, err := client.Poll(ctx, failJob)
		failState = st
		return st.State == StateFailed, err
	}); err != nil {
		t.Fatalf("fail job did not fail: %v (last=%#v)", err, failState)
	}
	if failState.Err != "boom" {
		t.Fatalf("want last error %q got %q", "boom", failState.Err)
	}
}

func TestClient_Poll_UnknownJob(t *testing.T) {
	rdb := startMiniRedis(t)
	client := NewClient(rdb, ClientOptions{})

	st, err := client.Poll(context.Background(), JobHandle{ID: "missing"})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if st.State != StateUnknown || st.Terminal() {
		t.Fatalf("want unknown non-terminal state, got %#v", st)
	}
}

func TestClient_Poll_PendingJobIsRunning(t *testing.T) {
	rdb := startMiniRedis(t)
	client := NewClient(rdb, ClientOptions{Queue: "regs"})

	h, err := client.Submit(context.Background(), "it:ok", P{N: 1})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	st, err := client.Poll(context.Background(), h)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if st.State != StateRunning {
		t.Fatalf("want running, got %s", st.State)
	}
}

func TestPermanent_KeepsMessageAndSkipsRetry(t *testing.T) {
	err := Permanent(fmt.Errorf("zone already active elsewhere"))
	if err.Error() != "zone already active elsewhere" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected error to wrap asynq.SkipRetry")
	}
	if Permanent(nil) != nil {
		t.Fatalf("Permanent(nil) should be nil")
	}
}
