package giveaway

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"giveaway-bot/model"
	"giveaway-bot/utils/database"

	"github.com/jmoiron/sqlx"
)

type fakeScheduler struct {
	mu        sync.Mutex
	created   []model.Timer
	cancelled []model.TimerKey
}

func (f *fakeScheduler) CreateTimer(timer model.Timer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, timer)
	return nil
}

func (f *fakeScheduler) CancelTimer(key model.TimerKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, key)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	ended    [][]string
	rerolled [][]string
	canceled []*model.Giveaway
}

func (f *fakeNotifier) GiveawayEnded(g *model.Giveaway, winners []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, winners)
}

func (f *fakeNotifier) GiveawayRerolled(g *model.Giveaway, winners []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rerolled = append(f.rerolled, winners)
}

func (f *fakeNotifier) GiveawayCancelled(g *model.Giveaway) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, g)
}

type fakeMembers struct {
	gone  map[string]bool
	roles map[string][]string
}

func (f *fakeMembers) ResolveMember(guildID, memberID string) (*Member, error) {
	if f.gone[memberID] {
		return nil, nil
	}
	return &Member{ID: memberID, Roles: f.roles[memberID]}, nil
}

func newTestService(t *testing.T, db *sqlx.DB) (*Service, *fakeScheduler, *fakeNotifier) {
	t.Helper()
	scheduler := &fakeScheduler{}
	notifier := &fakeNotifier{}
	svc := NewService(ServiceConfig{
		DB:        db,
		Scheduler: scheduler,
		Registry:  NewRegistry(db, NewEvaluator(nil), nil),
		Notifier:  notifier,
		Rand:      rand.New(rand.NewSource(7)),
	})
	return svc, scheduler, notifier
}

func TestServiceStartSchedulesDeadline(t *testing.T) {
	db := testDB(t)
	svc, scheduler, _ := newTestService(t, db)

	ends := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	g := &model.Giveaway{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1",
		Prize: "nitro", HostID: "host", WinnerCount: 1, Ends: ends,
	}
	if err := svc.Start(g); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if len(scheduler.created) != 1 {
		t.Fatalf("expected 1 scheduled timer, got %d", len(scheduler.created))
	}
	timer := scheduler.created[0]
	if timer.Event != EventGiveaway || timer.Key() != g.Key() || !timer.Expires.Equal(ends) {
		t.Fatalf("unexpected timer: %+v", timer)
	}

	stored, err := database.GetGiveaway(db, g.Key())
	if err != nil || stored == nil {
		t.Fatalf("giveaway not persisted: %v", err)
	}
}

func TestServiceEndDrawsWinnersOnce(t *testing.T) {
	db := testDB(t)
	svc, scheduler, notifier := newTestService(t, db)

	g := &model.Giveaway{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1",
		Prize: "nitro", HostID: "host", WinnerCount: 2,
		Ends: time.Now().Add(time.Hour).UTC(),
	}
	if err := svc.Start(g); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for _, id := range []string{"alice", "bob", "carol"} {
		if _, err := svc.Join(context.Background(), g.Key(), Member{ID: id}); err != nil {
			t.Fatalf("join %s failed: %v", id, err)
		}
	}

	winners, err := svc.End(g.Key())
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if len(winners) != 2 {
		t.Fatalf("expected 2 winners, got %v", winners)
	}
	if winners[0] == winners[1] {
		t.Fatalf("same member won twice: %v", winners)
	}
	if len(scheduler.cancelled) != 1 {
		t.Fatalf("pending deadline must be dropped, cancelled=%v", scheduler.cancelled)
	}
	if len(notifier.ended) != 1 {
		t.Fatalf("expected 1 end announcement, got %d", len(notifier.ended))
	}

	// The ended flag is a check-and-set: the losing path of the race gets
	// ErrGiveawayEnded and no second draw happens.
	if _, err := svc.End(g.Key()); !errors.Is(err, model.ErrGiveawayEnded) {
		t.Fatalf("expected ErrGiveawayEnded on re-end, got %v", err)
	}
	if len(notifier.ended) != 1 {
		t.Fatalf("re-end must not announce again")
	}

	stored, err := database.GetGiveaway(db, g.Key())
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !stored.Ended || len(stored.Winners) != 2 {
		t.Fatalf("end state not persisted: ended=%v winners=%v", stored.Ended, stored.Winners)
	}

	// The draw works on a copy: the stored pool keeps every entry, and the
	// winners stay a subset of the persisted participants.
	if stored.DistinctParticipants() != 3 {
		t.Fatalf("participant pool must survive the draw, got %v", stored.Participants)
	}
	for _, w := range stored.Winners {
		if !stored.HasParticipant(w) {
			t.Fatalf("winner %q not in persisted participants %v", w, stored.Participants)
		}
	}
}

func TestServiceEndSkipsDepartedMembers(t *testing.T) {
	db := testDB(t)
	scheduler := &fakeScheduler{}
	svc := NewService(ServiceConfig{
		DB:        db,
		Scheduler: scheduler,
		Registry:  NewRegistry(db, NewEvaluator(nil), nil),
		Members:   &fakeMembers{gone: map[string]bool{"ghost": true}},
		Rand:      rand.New(rand.NewSource(7)),
	})

	g := &model.Giveaway{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1",
		Prize: "nitro", HostID: "host", WinnerCount: 2,
		Ends: time.Now().Add(time.Hour).UTC(),
	}
	if err := svc.Start(g); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for _, id := range []string{"ghost", "alice"} {
		if _, err := svc.Join(context.Background(), g.Key(), Member{ID: id}); err != nil {
			t.Fatalf("join %s failed: %v", id, err)
		}
	}

	winners, err := svc.End(g.Key())
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if len(winners) != 1 || winners[0] != "alice" {
		t.Fatalf("departed member must not win, got %v", winners)
	}
}

func TestServiceEndRechecksEligibilityAtDraw(t *testing.T) {
	db := testDB(t)
	members := &fakeMembers{roles: map[string][]string{
		"keeper":   {"members-only"},
		"bypasser": {"vip"},
	}}
	svc := NewService(ServiceConfig{
		DB:        db,
		Scheduler: &fakeScheduler{},
		Registry:  NewRegistry(db, NewEvaluator(nil), nil),
		Members:   members,
		Rand:      rand.New(rand.NewSource(7)),
	})

	g := &model.Giveaway{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1",
		Prize: "nitro", HostID: "host", WinnerCount: 3,
		RequiredRoles: []string{"members-only"},
		BypassRoles:   []string{"vip"},
		Ends:          time.Now().Add(time.Hour).UTC(),
	}
	if err := svc.Start(g); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	// All three hold the required role at join time; "lapsed" loses it
	// before the deadline.
	members.roles["lapsed"] = []string{"members-only"}
	for _, id := range []string{"keeper", "bypasser", "lapsed"} {
		if _, err := svc.Join(context.Background(), g.Key(), Member{ID: id, Roles: members.roles[id]}); err != nil {
			t.Fatalf("join %s failed: %v", id, err)
		}
	}
	members.roles["lapsed"] = nil

	winners, err := svc.End(g.Key())
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if len(winners) != 2 {
		t.Fatalf("expected 2 winners, got %v", winners)
	}
	for _, w := range winners {
		if w == "lapsed" {
			t.Fatalf("member without the required role must not win: %v", winners)
		}
	}
}

func TestServiceRerollDrawsFromSamePool(t *testing.T) {
	db := testDB(t)
	svc, _, notifier := newTestService(t, db)

	g := &model.Giveaway{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1",
		Prize: "nitro", HostID: "host", WinnerCount: 1,
		Ends: time.Now().Add(time.Hour).UTC(),
	}
	if err := svc.Start(g); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for _, id := range []string{"alice", "bob"} {
		if _, err := svc.Join(context.Background(), g.Key(), Member{ID: id}); err != nil {
			t.Fatalf("join %s failed: %v", id, err)
		}
	}

	if _, err := svc.End(g.Key()); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	rerolled, err := svc.Reroll(g.Key(), 1)
	if err != nil {
		t.Fatalf("reroll failed: %v", err)
	}
	if len(rerolled) != 1 {
		t.Fatalf("expected 1 rerolled winner, got %v", rerolled)
	}
	if len(notifier.rerolled) != 1 {
		t.Fatalf("expected 1 reroll announcement")
	}

	// The reroll overwrites the recorded winners but never shrinks the pool.
	stored, err := database.GetGiveaway(db, g.Key())
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.DistinctParticipants() != 2 {
		t.Fatalf("reroll must not rewrite the pool, got %v", stored.Participants)
	}
	if len(stored.Winners) != 1 || stored.Winners[0] != rerolled[0] {
		t.Fatalf("rerolled winner not recorded: %v vs %v", stored.Winners, rerolled)
	}
	if !stored.HasParticipant(rerolled[0]) {
		t.Fatalf("rerolled winner %q not in pool %v", rerolled[0], stored.Participants)
	}
}

func TestServiceRerollSeedsVaryWinners(t *testing.T) {
	db := testDB(t)
	svc, _, _ := newTestService(t, db)

	g := &model.Giveaway{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1",
		Prize: "nitro", HostID: "host", WinnerCount: 1,
		Ends: time.Now().Add(time.Hour).UTC(),
	}
	if err := svc.Start(g); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for _, id := range []string{"alice", "bob", "carol"} {
		if _, err := svc.Join(context.Background(), g.Key(), Member{ID: id}); err != nil {
			t.Fatalf("join %s failed: %v", id, err)
		}
	}
	if _, err := svc.End(g.Key()); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	// Every reroll sees the identical pool, so only the seed decides the
	// outcome: across enough seeds at least two different winners appear.
	winners := make(map[string]bool)
	for seed := int64(0); seed < 20; seed++ {
		re := NewService(ServiceConfig{
			DB:        db,
			Scheduler: &fakeScheduler{},
			Registry:  NewRegistry(db, NewEvaluator(nil), nil),
			Rand:      rand.New(rand.NewSource(seed)),
		})
		got, err := re.Reroll(g.Key(), 1)
		if err != nil {
			t.Fatalf("reroll with seed %d failed: %v", seed, err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 winner with seed %d, got %v", seed, got)
		}
		winners[got[0]] = true
	}
	if len(winners) < 2 {
		t.Fatalf("expected different seeds to produce different winners, got %v", winners)
	}
}

func TestServiceRerollRequiresEnd(t *testing.T) {
	db := testDB(t)
	svc, _, _ := newTestService(t, db)

	g := &model.Giveaway{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1",
		Prize: "nitro", HostID: "host", WinnerCount: 1,
		Ends: time.Now().Add(time.Hour).UTC(),
	}
	if err := svc.Start(g); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if _, err := svc.Reroll(g.Key(), 1); !errors.Is(err, model.ErrGiveawayNotEnded) {
		t.Fatalf("expected ErrGiveawayNotEnded, got %v", err)
	}
	missing := model.TimerKey{GuildID: "g1", ChannelID: "c1", MessageID: "nope"}
	if _, err := svc.Reroll(missing, 1); !errors.Is(err, model.ErrGiveawayNotFound) {
		t.Fatalf("expected ErrGiveawayNotFound, got %v", err)
	}
}

func TestServiceCancelDeletesWithoutWinners(t *testing.T) {
	db := testDB(t)
	svc, scheduler, notifier := newTestService(t, db)

	g := &model.Giveaway{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1",
		ExtraMessageID: "extra",
		Prize:          "nitro", HostID: "host", WinnerCount: 1,
		Ends: time.Now().Add(time.Hour).UTC(),
	}
	if err := svc.Start(g); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := svc.Cancel(g.Key()); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if len(scheduler.cancelled) != 1 {
		t.Fatalf("deadline must be cancelled")
	}
	if len(notifier.canceled) != 1 || len(notifier.ended) != 0 {
		t.Fatalf("cancel must announce cancellation only")
	}
	// The notifier gets the satellite message reference so it can delete it.
	if notifier.canceled[0].ExtraMessageID != "extra" {
		t.Fatalf("satellite message reference lost: %+v", notifier.canceled[0])
	}
	stored, err := database.GetGiveaway(db, g.Key())
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored != nil {
		t.Fatalf("cancelled giveaway must be deleted")
	}
	if err := svc.Cancel(g.Key()); !errors.Is(err, model.ErrGiveawayNotFound) {
		t.Fatalf("expected ErrGiveawayNotFound on second cancel, got %v", err)
	}
}

func TestServiceHandleTimerEndsGiveaway(t *testing.T) {
	db := testDB(t)
	svc, _, notifier := newTestService(t, db)

	g := &model.Giveaway{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1",
		Prize: "nitro", HostID: "host", WinnerCount: 1,
		Ends: time.Now().Add(time.Hour).UTC(),
	}
	if err := svc.Start(g); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := svc.Join(context.Background(), g.Key(), Member{ID: "alice"}); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	svc.HandleTimer(model.Timer{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1",
		Event: EventGiveaway, Expires: g.Ends,
	})
	if len(notifier.ended) != 1 {
		t.Fatalf("deadline fire must end the giveaway")
	}

	// A stale fire for the already-ended giveaway is silent.
	svc.HandleTimer(model.Timer{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1",
		Event: EventGiveaway, Expires: g.Ends,
	})
	if len(notifier.ended) != 1 {
		t.Fatalf("stale fire must not announce again")
	}
}
