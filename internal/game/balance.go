package game

import (
	"math"

	"github.com/ObambaCaree/petridish/internal/world"
)

// BalanceResult reports what BalanceMass changed.
type BalanceResult struct {
	FoodAdded    int
	FoodRemoved  int
	VirusesAdded int
}

// BalanceMass tops food up toward the arena mass budget, trims any surplus,
// and refills viruses to the configured maximum.
func BalanceMass(w *world.World) BalanceResult {
	cfg := w.Config()
	var res BalanceResult

	foodCount := len(w.Food())
	massTotal := float64(foodCount) * cfg.FoodMass
	for _, p := range w.Players() {
		massTotal += p.MassTotal
	}
	byMass := int(math.Floor((cfg.GameMass - massTotal) / cfg.FoodMass))
	diff := byMass
	if room := cfg.MaxFood - foodCount; room < diff {
		diff = room
	}
	switch {
	case diff > 0:
		w.SpawnFood(diff)
		res.FoodAdded = diff
	case diff < 0:
		w.RemoveFood(-diff)
		res.FoodRemoved = foodCount - len(w.Food())
	}

	if missing := cfg.MaxVirus - len(w.Viruses()); missing > 0 {
		w.SpawnViruses(missing)
		res.VirusesAdded = missing
	}
	return res
}

// DecayMass bleeds mass from large cells. A cell only loses mass when the
// decayed value still exceeds the default mass and its player's running
// total is above the loss threshold, so decay stops partway through the
// cells once the total drops to the threshold. It returns the total mass
// removed.
func DecayMass(w *world.World, p *world.Player) float64 {
	cfg := w.Config()
	if cfg.MassLossRate <= 0 {
		return 0
	}
	factor := 1 - cfg.MassLossRate/1000
	lost := 0.0
	for _, cell := range p.Cells {
		decayed := cell.Mass * factor
		if decayed <= cfg.DefaultPlayerMass || p.MassTotal <= cfg.MinMassLoss {
			continue
		}
		delta := cell.Mass - decayed
		cell.Mass = decayed
		cell.Radius = w.Radius(decayed)
		p.MassTotal -= delta
		lost += delta
	}
	return lost
}
