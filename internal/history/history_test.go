package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/robalobadob/primegame/internal/game"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	db, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestOpenIsIdempotent(t *testing.T) {
	st := openTest(t)
	if err := migrate(st.db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var n int
	if err := st.db.QueryRow(`SELECT COUNT(1) FROM _migrations`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("recorded migrations = %d, want 1", n)
	}
}

func TestRoundsAndSummary(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	rows := []Round{
		{SessionID: "a", Seq: 1, Number: 7, Prime: true, Answered: true, Correct: true, ElapsedSeconds: 3},
		{SessionID: "a", Seq: 2, Number: 8, Answered: true, Correct: false, ElapsedSeconds: 2},
		{SessionID: "a", Seq: 3, Number: 9, ElapsedSeconds: 5},
		{SessionID: "b", Seq: 1, Number: 2, Prime: true, Answered: true, Correct: true},
	}
	for _, r := range rows {
		if err := st.InsertRound(ctx, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := st.Rounds(ctx, "a", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Seq != 3 || got[1].Seq != 2 {
		t.Fatalf("rounds = %+v", got)
	}
	if got[1].Number != 8 || !got[1].Answered || got[1].Correct || got[1].Prime {
		t.Errorf("round 2 decoded wrong: %+v", got[1])
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("createdAt not parsed")
	}

	sum, err := st.Summary(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Rounds != 3 || sum.Answered != 2 || sum.Correct != 1 || sum.Accuracy != 0.5 {
		t.Errorf("summary = %+v", sum)
	}

	empty, err := st.Summary(ctx, "nobody")
	if err != nil || empty.Rounds != 0 || empty.Accuracy != 0 {
		t.Errorf("empty summary = %+v, %v", empty, err)
	}
}

func TestPurge(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	_ = st.InsertRound(ctx, Round{SessionID: "a", Seq: 1, Number: 4})
	_ = st.InsertMilestone(ctx, Milestone{SessionID: "a", Attempts: 10, Correct: 6, Wrong: 3})
	_ = st.InsertRound(ctx, Round{SessionID: "b", Seq: 1, Number: 5})

	if err := st.Purge(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if r, _ := st.Rounds(ctx, "a", 0); len(r) != 0 {
		t.Errorf("rounds left after purge: %+v", r)
	}
	if m, _ := st.Milestones(ctx, "a"); len(m) != 0 {
		t.Errorf("milestones left after purge: %+v", m)
	}
	if r, _ := st.Rounds(ctx, "b", 0); len(r) != 1 {
		t.Errorf("purge touched another session: %+v", r)
	}
}

func TestRecorderFollowsEngine(t *testing.T) {
	st := openTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := NewRecorder(st, 0)
	rec.Start(ctx)

	nums := []int{7, 8, 9, 10}
	i := 0
	eng := game.New(game.Options{MilestoneEvery: 2, Source: func(min, max int) int {
		n := nums[i%len(nums)]
		i++
		return n
	}})
	eng.Subscribe(rec.Observer("s1"))

	eng.SubmitAnswer(true) // 7 prime: correct
	eng.SecondTick()
	eng.Tick()             // retires 7, shows 8
	eng.SubmitAnswer(true) // 8: wrong
	eng.Tick()             // retires 8, shows 9, milestone at 2
	eng.Tick()             // retires 9 unanswered
	eng.Reset()
	eng.Tick() // retires 10 after reset; seq keeps counting

	flushCtx, done := context.WithTimeout(ctx, 5*time.Second)
	defer done()
	if err := rec.Flush(flushCtx); err != nil {
		t.Fatal(err)
	}

	rounds, err := st.Rounds(ctx, "s1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rounds) != 4 {
		t.Fatalf("rounds = %+v", rounds)
	}
	oldest := rounds[3]
	if oldest.Number != 7 || !oldest.Prime || !oldest.Answered || !oldest.Correct || oldest.ElapsedSeconds != 1 {
		t.Errorf("first round = %+v", oldest)
	}
	if rounds[0].Seq != 4 || rounds[0].Number != 10 {
		t.Errorf("latest round = %+v", rounds[0])
	}

	ms, err := st.Milestones(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 1 || ms[0].Attempts != 2 || ms[0].Correct != 1 || ms[0].Wrong != 1 {
		t.Errorf("milestones = %+v", ms)
	}

	if err := rec.Forget(flushCtx, "s1"); err != nil {
		t.Fatal(err)
	}
	if r, _ := st.Rounds(ctx, "s1", 10); len(r) != 0 {
		t.Errorf("forget left rows: %+v", r)
	}

	cancel()
	rec.Wait()
}
