package world

import (
	"fmt"
	"testing"
	"time"
)

func newTestWorld(t *testing.T, cfg Config) *World {
	t.Helper()
	next := 0
	return New(cfg, Deps{
		IDs: func() string {
			next++
			return fmt.Sprintf("p%d", next)
		},
		Now: func() time.Time { return time.Unix(1000, 0) },
	})
}

func TestConfigNormalizedAppliesDefaults(t *testing.T) {
	cfg := Config{Width: -1, SlowBase: 0.5, SpawnPolicy: "nowhere", VirusMassMin: 200, VirusMassMax: 10}.Normalized()
	def := DefaultConfig()
	if cfg.Width != def.Width || cfg.Height != def.Height {
		t.Fatalf("expected default dimensions, got %vx%v", cfg.Width, cfg.Height)
	}
	if cfg.SlowBase != def.SlowBase {
		t.Fatalf("expected slow base %v, got %v", def.SlowBase, cfg.SlowBase)
	}
	if cfg.SpawnPolicy != SpawnFarthest {
		t.Fatalf("expected farthest spawn policy, got %q", cfg.SpawnPolicy)
	}
	if cfg.VirusMassMax != cfg.VirusMassMin {
		t.Fatalf("expected virus max clamped to min, got %v..%v", cfg.VirusMassMin, cfg.VirusMassMax)
	}
	if got := cfg.BroadcastInterval(); got != 25*time.Millisecond {
		t.Fatalf("expected 25ms broadcast interval, got %v", got)
	}
}

func TestDeterministicRNGStableAcrossCalls(t *testing.T) {
	a := NewDeterministicRNG("seed", "world")
	b := NewDeterministicRNG("seed", "world")
	c := NewDeterministicRNG("seed", "other")
	av, bv, cv := a.Int63(), b.Int63(), c.Int63()
	if av != bv {
		t.Fatalf("expected identical streams for identical labels")
	}
	if av == cv {
		t.Fatalf("expected distinct streams for distinct labels")
	}
}

func TestMassToRadius(t *testing.T) {
	if got := MassToRadius(0); got != 4 {
		t.Fatalf("expected radius 4 for empty mass, got %v", got)
	}
	if got := MassToRadius(100); got != 64 {
		t.Fatalf("expected radius 64 for mass 100, got %v", got)
	}
}

func TestSpawnPlayerPlacesSingleCellInsideArena(t *testing.T) {
	w := newTestWorld(t, Config{Width: 500, Height: 400})
	p := w.SpawnPlayer("alice", KindPlayer)
	if len(p.Cells) != 1 {
		t.Fatalf("expected one cell, got %d", len(p.Cells))
	}
	c := p.Cells[0]
	if c.Mass != w.Config().DefaultPlayerMass || p.MassTotal != c.Mass {
		t.Fatalf("unexpected spawn mass cell=%v total=%v", c.Mass, p.MassTotal)
	}
	if c.X < c.Radius || c.X > 500-c.Radius || c.Y < c.Radius || c.Y > 400-c.Radius {
		t.Fatalf("spawn outside arena: (%v,%v) r=%v", c.X, c.Y, c.Radius)
	}

	s := w.SpawnPlayer("watcher", KindSpectator)
	if len(s.Cells) != 0 || !s.IsSpectator() {
		t.Fatalf("expected cell-less spectator, got %+v", s)
	}
}

func TestRemovePlayerIsIdempotentAndPreservesOrder(t *testing.T) {
	w := newTestWorld(t, Config{})
	var ids []string
	for _, name := range []string{"a", "b", "c", "d"} {
		p := w.SpawnPlayer(name, KindPlayer)
		if err := w.AddPlayer(p); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
		ids = append(ids, p.ID)
	}
	if err := w.AddPlayer(w.playersByID[ids[0]]); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}

	if _, ok := w.RemovePlayer(ids[1]); !ok {
		t.Fatalf("expected first removal to succeed")
	}
	if _, ok := w.RemovePlayer(ids[1]); ok {
		t.Fatalf("expected second removal to be a no-op")
	}
	var names []string
	for _, p := range w.Players() {
		names = append(names, p.Name)
	}
	if fmt.Sprint(names) != "[a c d]" {
		t.Fatalf("unexpected order after removal: %v", names)
	}
	if _, ok := w.Player(ids[1]); ok {
		t.Fatalf("removed player still indexed")
	}
}

func TestCompactDropsConsumedEntities(t *testing.T) {
	w := newTestWorld(t, Config{})
	f1 := w.AddFood(10, 10)
	f2 := w.AddFood(20, 20)
	v := w.AddVirus(100, 100, 120)
	m := w.AddPellet(&MassPellet{Owner: "p1", X: 5, Y: 5, Mass: 20})

	if !w.ConsumeFood(f1) {
		t.Fatalf("expected food to be consumable")
	}
	if w.ConsumeFood(f1) {
		t.Fatalf("expected food to be consumed only once")
	}
	w.ConsumeVirus(v)
	w.ConsumePellet(m)

	if len(w.Food()) != 2 {
		t.Fatalf("consumed entities must stay in place until compaction")
	}
	w.Compact()
	if len(w.Food()) != 1 || w.Food()[0] != f2 {
		t.Fatalf("expected only f2 to survive, got %v", w.Food())
	}
	if len(w.Viruses()) != 0 || len(w.Pellets()) != 0 {
		t.Fatalf("expected viruses and pellets to be compacted")
	}
}

func TestUniformPositionAvoidsExistingPlayers(t *testing.T) {
	w := newTestWorld(t, Config{Width: 1000, Height: 1000})
	crowd := w.SpawnPlayer("crowd", KindPlayer)
	crowd.X, crowd.Y = 500, 500
	if err := w.AddPlayer(crowd); err != nil {
		t.Fatalf("add: %v", err)
	}
	for i := 0; i < 20; i++ {
		x, y := w.UniformPosition(10)
		if x < 10 || x > 990 || y < 10 || y > 990 {
			t.Fatalf("position outside arena: (%v,%v)", x, y)
		}
	}
}

func TestPlayerCellHelpers(t *testing.T) {
	w := newTestWorld(t, Config{})
	p := &Player{ID: "p"}
	p.Cells = []*Cell{w.NewCell(0, 0, 10), w.NewCell(10, 20, 30), w.NewCell(20, 40, 50)}
	p.RecomputeCentre()
	if p.X != 10 || p.Y != 20 {
		t.Fatalf("unexpected centre (%v,%v)", p.X, p.Y)
	}
	if got := p.RecalculateMass(); got != 90 {
		t.Fatalf("expected mass 90, got %v", got)
	}
	second := p.Cells[1].ID
	if _, ok := p.RemoveCell(second); !ok {
		t.Fatalf("expected removal of cell %d", second)
	}
	if p.CellIndex(second) != -1 || len(p.Cells) != 2 {
		t.Fatalf("cell still present after removal")
	}
	if seq := p.NextEjectSeq(); seq != 1 {
		t.Fatalf("expected first eject seq 1, got %d", seq)
	}
}

func TestClampCellUsesRadiusSlack(t *testing.T) {
	w := newTestWorld(t, Config{Width: 100, Height: 100})
	c := &Cell{X: -50, Y: 500, Radius: 30}
	w.ClampCell(c)
	if c.X != 10 || c.Y != 90 {
		t.Fatalf("expected clamp to (10,90), got (%v,%v)", c.X, c.Y)
	}
}
