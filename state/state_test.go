package state

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/chaseserver/game"
	"github.com/wfunc/chaseserver/ranking"
	"github.com/wfunc/chaseserver/timer"
)

type recordedEvent struct {
	event   string
	except  string
	payload interface{}
}

// fakeRoom is a RoomContext double that records every broadcast.
type fakeRoom struct {
	mu         sync.Mutex
	id         string
	status     string
	machine    StateMachine
	timers     *timer.Manager
	players    map[game.Role]PlayerRef
	events     []recordedEvent
	resetDelay time.Duration
	closed     bool
	resets     int
}

func (r *fakeRoom) GetID() string { return r.id }

func (r *fakeRoom) PlayerByRole(role game.Role) (PlayerRef, bool) {
	p, ok := r.players[role]
	return p, ok
}

func (r *fakeRoom) Publish(event string, payload interface{}) {
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{event: event, payload: payload})
	r.mu.Unlock()
}

func (r *fakeRoom) PublishExcept(sessionID, event string, payload interface{}) {
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{event: event, except: sessionID, payload: payload})
	r.mu.Unlock()
}

func (r *fakeRoom) ChangeState(newState State) error { return r.machine.ChangeState(newState) }

func (r *fakeRoom) SetStatus(status string) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
}

func (r *fakeRoom) ResetToWaiting() {
	r.mu.Lock()
	r.status = StatusWaiting
	r.resets++
	r.mu.Unlock()
	r.machine.ChangeState(NewWaitingState(r))
}

func (r *fakeRoom) ResetDelay() time.Duration { return r.resetDelay }

func (r *fakeRoom) Timers() *timer.Manager { return r.timers }

func (r *fakeRoom) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *fakeRoom) getStatus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *fakeRoom) lastEvent(name string) (recordedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].event == name {
			return r.events[i], true
		}
	}
	return recordedEvent{}, false
}

// stubSettler returns a deterministic settlement for equal 1000 standings.
type stubSettler struct {
	mu    sync.Mutex
	calls int
	last  ranking.GameOutcome
}

func (s *stubSettler) SettleMatch(criminal, cop PlayerRef, outcome ranking.GameOutcome) *ranking.MatchResult {
	s.mu.Lock()
	s.calls++
	s.last = outcome
	s.mu.Unlock()
	result := ranking.ApplyResult(
		ranking.Standing{UserID: criminal.UserID, Username: criminal.Username, Points: 1000},
		ranking.Standing{UserID: cop.UserID, Username: cop.Username, Points: 1000},
		outcome,
	)
	return &result
}

var (
	criminalRef = PlayerRef{SessionID: "s-criminal", UserID: "u1", Username: "bonnie", Role: game.RoleCriminal}
	copRef      = PlayerRef{SessionID: "s-cop", UserID: "u2", Username: "clyde", Role: game.RoleCop}
)

func newPlayingFixture(t *testing.T, trustClient bool) (*fakeRoom, *PlayingState, *stubSettler) {
	t.Helper()
	mapDef, ok := game.GetMap("easy")
	if !ok {
		t.Fatal("easy map missing")
	}
	timers := timer.NewManager()
	t.Cleanup(timers.Stop)

	fr := &fakeRoom{
		id:         "ROOM1",
		status:     StatusWaiting,
		timers:     timers,
		resetDelay: 50 * time.Millisecond,
		players: map[game.Role]PlayerRef{
			game.RoleCriminal: criminalRef,
			game.RoleCop:      copRef,
		},
	}
	fr.machine = NewBaseStateMachine(NewWaitingState(fr))

	match := game.NewMatch(mapDef, trustClient)
	settler := &stubSettler{}
	ps := NewPlayingState(fr, match, settler)
	fr.SetStatus(StatusPlaying)
	if err := fr.machine.ChangeState(ps); err != nil {
		t.Fatalf("entering playing state: %v", err)
	}
	return fr, ps, settler
}

func TestBaseStateMachine_Transitions(t *testing.T) {
	fr := &fakeRoom{id: "R"}
	machine := NewBaseStateMachine(NewWaitingState(fr))
	fr.machine = machine

	if got := machine.GetCurrentState().GetID(); got != StatusWaiting {
		t.Fatalf("initial state = %s", got)
	}

	// waiting 不能直接到 finished
	if err := machine.ChangeState(NewFinishedState(fr)); err != ErrTransitionNotAllowed {
		t.Fatalf("waiting->finished should be rejected, got %v", err)
	}

	mapDef, _ := game.GetMap("easy")
	match := game.NewMatch(mapDef, false)
	if err := machine.ChangeState(NewPlayingState(fr, match, nil)); err != nil {
		t.Fatalf("waiting->playing: %v", err)
	}

	// playing 不能回 waiting，必须经过 finished
	if err := machine.ChangeState(NewWaitingState(fr)); err != ErrTransitionNotAllowed {
		t.Fatalf("playing->waiting should be rejected, got %v", err)
	}
}

func TestPlayingState_EntryBroadcastsSnapshot(t *testing.T) {
	fr, _, _ := newPlayingFixture(t, false)

	ev, ok := fr.lastEvent("game-started")
	if !ok {
		t.Fatal("entering the playing state must broadcast game-started")
	}
	payload := ev.payload.(map[string]interface{})
	if payload["map"] != "easy" {
		t.Errorf("game-started map = %v", payload["map"])
	}
}

func TestPlayingState_MoveBroadcastsToOpponent(t *testing.T) {
	fr, ps, _ := newPlayingFixture(t, false)

	data, _ := json.Marshal(map[string]float64{"dx": 100, "dy": 0})
	if err := ps.HandleIntent(criminalRef, "player-move", data); err != nil {
		t.Fatalf("move intent: %v", err)
	}

	ev, ok := fr.lastEvent("player-moved")
	if !ok {
		t.Fatal("a successful move must broadcast player-moved")
	}
	if ev.except != criminalRef.SessionID {
		t.Errorf("mover should be excluded, except = %q", ev.except)
	}
	payload := ev.payload.(map[string]interface{})
	if payload["role"] != game.RoleCriminal {
		t.Errorf("player-moved role = %v", payload["role"])
	}
}

func TestPlayingState_MalformedIntentIsAnError(t *testing.T) {
	_, ps, _ := newPlayingFixture(t, false)

	if err := ps.HandleIntent(criminalRef, "player-move", []byte("not json")); err == nil {
		t.Error("malformed move payload should surface an error")
	}
	if err := ps.HandleIntent(criminalRef, "collect-coin", []byte("{")); err == nil {
		t.Error("malformed coin payload should surface an error")
	}
}

func TestPlayingState_CaughtIntentIgnoredWhenValidated(t *testing.T) {
	fr, ps, settler := newPlayingFixture(t, false)

	if err := ps.HandleIntent(copRef, "player-caught", nil); err != nil {
		t.Fatalf("caught intent: %v", err)
	}
	if fr.getStatus() != StatusPlaying {
		t.Error("validated mode must not accept client-decided catches")
	}
	if settler.calls != 0 {
		t.Error("no settlement should have happened")
	}
}

func TestPlayingState_TrustedEscapeSettlesAndResets(t *testing.T) {
	fr, ps, settler := newPlayingFixture(t, true)

	// 信任模式下先报满金币，再报逃脱
	for i := 0; i < 8; i++ {
		data, _ := json.Marshal(map[string]int{"coinIndex": i})
		if err := ps.HandleIntent(criminalRef, "collect-coin", data); err != nil {
			t.Fatalf("coin %d: %v", i, err)
		}
	}
	if err := ps.HandleIntent(criminalRef, "player-escaped", nil); err != nil {
		t.Fatalf("escape intent: %v", err)
	}

	if fr.getStatus() != StatusFinished {
		t.Fatalf("room should be finished, got %s", fr.getStatus())
	}
	if got := fr.machine.GetCurrentState().GetID(); got != StatusFinished {
		t.Fatalf("machine should be in finished, got %s", got)
	}

	ev, ok := fr.lastEvent("game-ended")
	if !ok {
		t.Fatal("game-ended must be broadcast")
	}
	payload := ev.payload.(map[string]interface{})
	if payload["winner"] != game.RoleCriminal {
		t.Errorf("winner = %v", payload["winner"])
	}
	if payload["rankings"] == nil {
		t.Error("game-ended should carry the settlement")
	}
	if settler.calls != 1 {
		t.Errorf("settler calls = %d, want 1", settler.calls)
	}
	if settler.last.CoinsCollected != 8 || settler.last.TotalCoins != 8 {
		t.Errorf("outcome coins = %d/%d", settler.last.CoinsCollected, settler.last.TotalCoins)
	}

	// 二次上报输掉竞态，不再结算
	if err := ps.HandleIntent(criminalRef, "player-escaped", nil); err != nil {
		t.Fatalf("repeat escape intent: %v", err)
	}
	if settler.calls != 1 {
		t.Errorf("repeat outcomes must not settle again, calls = %d", settler.calls)
	}

	// 定时器随后把房间带回等待状态
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fr.getStatus() == StatusWaiting {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if fr.getStatus() != StatusWaiting {
		t.Fatal("room should reset to waiting after the delay")
	}
	if got := fr.machine.GetCurrentState().GetID(); got != StatusWaiting {
		t.Errorf("machine should be waiting after reset, got %s", got)
	}
}

func TestPlayingState_PowerupIntentBroadcastsAuthoritativeDuration(t *testing.T) {
	fr, ps, _ := newPlayingFixture(t, true)

	data, _ := json.Marshal(map[string]int{"powerupIndex": 0})
	if err := ps.HandleIntent(criminalRef, "collect-powerup", data); err != nil {
		t.Fatalf("powerup intent: %v", err)
	}

	ev, ok := fr.lastEvent("powerup-collected")
	if !ok {
		t.Fatal("powerup-collected must be broadcast")
	}
	payload := ev.payload.(map[string]interface{})
	if payload["powerupType"] != game.PowerupSpeed {
		t.Errorf("powerupType = %v", payload["powerupType"])
	}
	if payload["duration"] != int64(5000) {
		t.Errorf("duration = %v, want server-side 5000", payload["duration"])
	}

	// 重复拾取同一点位不再广播
	before := len(fr.events)
	ps.HandleIntent(criminalRef, "collect-powerup", data)
	if len(fr.events) != before {
		t.Error("a taken spot must not broadcast again")
	}
}

func TestFinishedState_DropsIntents(t *testing.T) {
	timers := timer.NewManager()
	defer timers.Stop()

	fr := &fakeRoom{id: "R", timers: timers, resetDelay: time.Hour}
	fr.machine = NewBaseStateMachine(NewWaitingState(fr))
	fs := NewFinishedState(fr)
	fs.OnEnter()
	defer fs.OnExit()

	if err := fs.HandleIntent(criminalRef, "player-move", []byte(`{"dx":1}`)); err != nil {
		t.Errorf("finished state should drop intents silently, got %v", err)
	}
	if _, ok := fr.lastEvent("player-moved"); ok {
		t.Error("nothing may be broadcast from the finished state")
	}
}
