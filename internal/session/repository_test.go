package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/furnace-core/internal/infrastructure/database"
	"github.com/nerrad567/furnace-core/internal/sensorgroup"
	"github.com/nerrad567/furnace-core/migrations"
)

type fixture struct {
	db       *database.DB
	groups   *sensorgroup.SQLiteRepository
	sessions *SQLiteRepository
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	db, err := database.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.MigrateFrom(ctx, migrations.FS, "."); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	groups := sensorgroup.NewSQLiteRepository(db)
	return &fixture{db: db, groups: groups, sessions: NewSQLiteRepository(db, groups)}
}

func (f *fixture) group(t *testing.T, name string, entities ...string) *sensorgroup.Group {
	t.Helper()
	g, err := f.groups.Upsert(context.Background(), name, sensorgroup.Version(entities), entities)
	if err != nil {
		t.Fatalf("Upsert(%s) error = %v", name, err)
	}
	return g
}

func (f *fixture) partName(t *testing.T, name string) *PartName {
	t.Helper()
	pn, err := f.sessions.CreatePartName(context.Background(), name, nil)
	if err != nil {
		t.Fatalf("CreatePartName(%s) error = %v", name, err)
	}
	return pn
}

func TestSQLiteRepository_CreateAndLoad(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	g := f.group(t, "furnace", "sensor.t1", "sensor.t2")
	gear, shaft := f.partName(t, "gear"), f.partName(t, "shaft")

	s, err := f.sessions.Create(ctx, "batch-7", []PartInput{
		{PartNameID: gear.ID, SensorGroupID: g.ID},
		{PartNameID: shaft.ID, SensorGroupID: g.ID},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.StateID != StateCreated || s.State != "CREATED" {
		t.Errorf("new session state = %v/%q, want CREATED", s.StateID, s.State)
	}
	if len(s.Parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(s.Parts))
	}

	loaded, err := f.sessions.LoadSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	p := loaded.Parts[1]
	if p.PartName == nil || p.PartName.Name != "shaft" {
		t.Errorf("part name = %+v, want shaft", p.PartName)
	}
	if p.SensorGroup == nil || len(p.SensorGroup.Sensors) != 2 {
		t.Fatalf("sensor group = %+v, want 2 sensors", p.SensorGroup)
	}

	// The registry builds one entry per entity, bound to the later part.
	reg := NewRegistry(f.sessions)
	if err := reg.AddSession(ctx, s.ID); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("AddSession(CREATED) error = %v, want ErrSessionNotActive", err)
	}
	inProgress := StateInProgress
	if _, err := f.sessions.Update(ctx, s.ID, Update{State: &inProgress}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := reg.AddSession(ctx, s.ID); err != nil {
		t.Fatalf("AddSession() error = %v", err)
	}
	info, ok := reg.GetSensorInfo("sensor.t1")
	if !ok || info.PartID != p.ID || info.PartName != "shaft" || info.GroupName != "furnace" {
		t.Errorf("GetSensorInfo() = %+v, %v", info, ok)
	}
}

func TestSQLiteRepository_CreateErrors(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	g := f.group(t, "furnace", "sensor.t1")
	pn := f.partName(t, "gear")
	parts := []PartInput{{PartNameID: pn.ID, SensorGroupID: g.ID}}

	if _, err := f.sessions.Create(ctx, "tag", nil); !errors.Is(err, ErrNoParts) {
		t.Errorf("Create(no parts) error = %v, want ErrNoParts", err)
	}
	if _, err := f.sessions.Create(ctx, " ", parts); !errors.Is(err, ErrInvalidTag) {
		t.Errorf("Create(blank tag) error = %v, want ErrInvalidTag", err)
	}
	if _, err := f.sessions.Create(ctx, "tag", parts); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := f.sessions.Create(ctx, "tag", parts)
	if !errors.Is(err, ErrSessionExists) || !database.IsKind(err, database.KindConflict) {
		t.Errorf("Create(duplicate tag) error = %v, want ErrSessionExists/conflict", err)
	}

	_, err = f.sessions.Create(ctx, "other", []PartInput{{PartNameID: pn.ID, SensorGroupID: 999}})
	if !errors.Is(err, ErrInvalidReference) {
		t.Errorf("Create(bad group) error = %v, want ErrInvalidReference", err)
	}

	var n int
	if err := f.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE tag = 'other'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("failed create left a session row behind")
	}
}

func TestSQLiteRepository_UpdateAndList(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	g := f.group(t, "furnace", "sensor.t1")
	pn := f.partName(t, "gear")
	parts := []PartInput{{PartNameID: pn.ID, SensorGroupID: g.ID}}

	first, err := f.sessions.Create(ctx, "first", parts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.sessions.Create(ctx, "second", parts)
	if err != nil {
		t.Fatal(err)
	}

	state := StateInProgress
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	updated, err := f.sessions.Update(ctx, first.ID, Update{State: &state, StartTime: &start})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.StateID != StateInProgress || updated.State != "IN PROGRESS" {
		t.Errorf("updated state = %v/%q", updated.StateID, updated.State)
	}
	if updated.StartTime == nil || !updated.StartTime.Equal(start) {
		t.Errorf("StartTime = %v, want %v", updated.StartTime, start)
	}

	bad := State(9)
	if _, err := f.sessions.Update(ctx, first.ID, Update{State: &bad}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Update(bad state) error = %v, want ErrInvalidState", err)
	}
	if _, err := f.sessions.Update(ctx, 999, Update{State: &state}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrSessionNotFound", err)
	}
	dup := "second"
	if _, err := f.sessions.Update(ctx, first.ID, Update{Tag: &dup}); !errors.Is(err, ErrSessionExists) {
		t.Errorf("Update(duplicate tag) error = %v, want ErrSessionExists", err)
	}

	ids, err := f.sessions.ListIDsByState(ctx, StateInProgress)
	if err != nil {
		t.Fatalf("ListIDsByState() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != first.ID {
		t.Errorf("ListIDsByState() = %v, want [%d]", ids, first.ID)
	}

	list, err := f.sessions.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Errorf("List() = %+v, want newest first", list)
	}
	if list[0].Parts != nil {
		t.Error("List() without IncludeParts loaded parts")
	}

	limited, err := f.sessions.List(ctx, ListOptions{Limit: 1, IncludeParts: true})
	if err != nil {
		t.Fatalf("List(limit) error = %v", err)
	}
	if len(limited) != 1 || len(limited[0].Parts) != 1 {
		t.Errorf("List(limit=1, parts) = %+v", limited)
	}

	if _, err := f.sessions.Get(ctx, 999, false); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrSessionNotFound", err)
	}
}

func TestSQLiteRepository_RestoreThroughRegistry(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	pn := f.partName(t, "gear")
	inProgress := StateInProgress
	for i, entity := range []string{"sensor.a", "sensor.b", "sensor.c"} {
		g := f.group(t, entity, entity)
		s, err := f.sessions.Create(ctx, entity, []PartInput{{PartNameID: pn.ID, SensorGroupID: g.ID}})
		if err != nil {
			t.Fatal(err)
		}
		if i < 2 {
			if _, err := f.sessions.Update(ctx, s.ID, Update{State: &inProgress}); err != nil {
				t.Fatal(err)
			}
		}
	}

	reg := NewRegistry(f.sessions)
	n, err := reg.RestoreActiveSessions(ctx)
	if err != nil {
		t.Fatalf("RestoreActiveSessions() error = %v", err)
	}
	if n != 2 {
		t.Errorf("restored = %d, want 2", n)
	}
	if _, ok := reg.GetSensorInfo("sensor.c"); ok {
		t.Error("CREATED session should not be routed")
	}
}

func TestSQLiteRepository_PartNames(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	oem := "Acme"
	pn, err := f.sessions.CreatePartName(ctx, " bracket ", &oem)
	if err != nil {
		t.Fatalf("CreatePartName() error = %v", err)
	}
	if pn.Name != "bracket" {
		t.Errorf("name = %q, want trimmed", pn.Name)
	}

	if _, err := f.sessions.CreatePartName(ctx, "bracket", nil); !errors.Is(err, ErrPartNameExists) {
		t.Errorf("duplicate CreatePartName() error = %v, want ErrPartNameExists", err)
	}
	if _, err := f.sessions.CreatePartName(ctx, "", nil); !errors.Is(err, ErrInvalidPartName) {
		t.Errorf("CreatePartName(empty) error = %v, want ErrInvalidPartName", err)
	}

	got, err := f.sessions.GetPartName(ctx, pn.ID)
	if err != nil || got.OEM == nil || *got.OEM != "Acme" {
		t.Errorf("GetPartName() = %+v, %v", got, err)
	}

	if _, err := f.sessions.UpdatePartName(ctx, pn.ID, "bracket-v2", nil); err != nil {
		t.Fatalf("UpdatePartName() error = %v", err)
	}
	if _, err := f.sessions.UpdatePartName(ctx, 999, "x", nil); !errors.Is(err, ErrPartNameNotFound) {
		t.Errorf("UpdatePartName(missing) error = %v, want ErrPartNameNotFound", err)
	}

	g := f.group(t, "furnace", "sensor.t1")
	if _, err := f.sessions.Create(ctx, "uses-bracket", []PartInput{{PartNameID: pn.ID, SensorGroupID: g.ID}}); err != nil {
		t.Fatal(err)
	}
	if err := f.sessions.DeletePartName(ctx, pn.ID); !errors.Is(err, ErrPartNameInUse) {
		t.Errorf("DeletePartName(in use) error = %v, want ErrPartNameInUse", err)
	}

	unused := f.partName(t, "spare")
	if err := f.sessions.DeletePartName(ctx, unused.ID); err != nil {
		t.Fatalf("DeletePartName() error = %v", err)
	}
	if _, err := f.sessions.GetPartName(ctx, unused.ID); !errors.Is(err, ErrPartNameNotFound) {
		t.Errorf("GetPartName(deleted) error = %v, want ErrPartNameNotFound", err)
	}

	names, err := f.sessions.ListPartNames(ctx)
	if err != nil || len(names) != 1 {
		t.Errorf("ListPartNames() = %+v, %v", names, err)
	}
}

func TestClampLimit(t *testing.T) {
	tests := map[int]int{0: DefaultListLimit, -5: DefaultListLimit, 50: 50, 5000: MaxListLimit}
	for in, want := range tests {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestState(t *testing.T) {
	if !StateInProgress.Active() || StateCreated.Active() {
		t.Error("only IN PROGRESS is active")
	}
	if !StateStopped.Ended() || !StateCompleted.Ended() || StateInProgress.Ended() {
		t.Error("STOPPED and COMPLETED end a session")
	}
	if State(0).Valid() || State(0).String() != "UNKNOWN" {
		t.Error("zero state should be invalid")
	}
}

func TestRegistry_StaleActivationAfterStop(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	g := f.group(t, "furnace", "sensor.t1")
	pn := f.partName(t, "gear")
	s, err := f.sessions.Create(ctx, "batch-9", []PartInput{{PartNameID: pn.ID, SensorGroupID: g.ID}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	reg := NewRegistry(f.sessions)
	inProgress, stopped := StateInProgress, StateStopped

	// Two PATCHes interleave: the IN PROGRESS writer reaches the registry
	// only after the STOPPED writer has finished.
	if _, err := f.sessions.Update(ctx, s.ID, Update{State: &inProgress}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.sessions.Update(ctx, s.ID, Update{State: &stopped}); err != nil {
		t.Fatal(err)
	}
	reg.RemoveSession(s.ID)
	if err := reg.AddSession(ctx, s.ID); !errors.Is(err, ErrSessionNotActive) {
		t.Errorf("AddSession() error = %v, want ErrSessionNotActive", err)
	}

	if reg.IsSessionActive(s.ID) {
		t.Error("STOPPED session is active")
	}
	if _, ok := reg.GetSensorInfo("sensor.t1"); ok {
		t.Error("STOPPED session still routes sensor.t1")
	}
}

func TestRegistry_TransitionFollowsStore(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	g := f.group(t, "furnace", "sensor.t1")
	pn := f.partName(t, "gear")
	s, err := f.sessions.Create(ctx, "batch-10", []PartInput{{PartNameID: pn.ID, SensorGroupID: g.ID}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	reg := NewRegistry(f.sessions)

	set := func(st State) func(context.Context) (*Session, error) {
		return func(ctx context.Context) (*Session, error) {
			return f.sessions.Update(ctx, s.ID, Update{State: &st})
		}
	}

	tests := []struct {
		name       string
		state      State
		wantActive bool
	}{
		{"start", StateInProgress, true},
		{"restart", StateInProgress, true},
		{"stop", StateStopped, false},
		{"resume", StateInProgress, true},
		{"complete", StateCompleted, false},
	}
	for _, tt := range tests {
		got, err := reg.Transition(ctx, s.ID, set(tt.state))
		if err != nil {
			t.Fatalf("%s: Transition() error = %v", tt.name, err)
		}
		if got.StateID != tt.state {
			t.Errorf("%s: state = %v, want %v", tt.name, got.StateID, tt.state)
		}
		if reg.IsSessionActive(s.ID) != tt.wantActive {
			t.Errorf("%s: active = %v, want %v", tt.name, reg.IsSessionActive(s.ID), tt.wantActive)
		}
		if _, ok := reg.GetSensorInfo("sensor.t1"); ok != tt.wantActive {
			t.Errorf("%s: routed = %v, want %v", tt.name, ok, tt.wantActive)
		}
	}

	if _, err := reg.Transition(ctx, 999, func(ctx context.Context) (*Session, error) {
		st := StateInProgress
		return f.sessions.Update(ctx, 999, Update{State: &st})
	}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Transition(missing) error = %v, want ErrSessionNotFound", err)
	}
}
