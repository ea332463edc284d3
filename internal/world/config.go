package world

import (
	"strings"
	"time"
)

const (
	DefaultSeed   = "petridish"
	DefaultWidth  = 5000.0
	DefaultHeight = 5000.0

	SpawnFarthest = "farthest"
	SpawnRandom   = "random"
)

// Config captures the tunables of the arena. Zero values are replaced with
// defaults by normalized.
type Config struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Seed   string  `json:"seed"`

	DefaultPlayerMass float64 `json:"defaultPlayerMass"`
	FoodMass          float64 `json:"foodMass"`
	FireFood          float64 `json:"fireFood"`
	LimitSplit        int     `json:"limitSplit"`
	SplitSpeed        float64 `json:"splitSpeed"`
	PelletSpeed       float64 `json:"pelletSpeed"`

	VirusMassMin float64 `json:"virusMassMin"`
	VirusMassMax float64 `json:"virusMassMax"`

	GameMass float64 `json:"gameMass"`
	MaxFood  int     `json:"maxFood"`
	MaxVirus int     `json:"maxVirus"`

	SlowBase   float64       `json:"slowBase"`
	MergeTimer time.Duration `json:"mergeTimer"`

	MassLossRate float64 `json:"massLossRate"`
	MinMassLoss  float64 `json:"minMassLoss"`

	NetworkUpdateFactor  int           `json:"networkUpdateFactor"`
	MaxHeartbeatInterval time.Duration `json:"maxHeartbeatInterval"`

	ViewMargin    float64 `json:"viewMargin"`
	MinEngulfMass float64 `json:"minEngulfMass"`

	AdminPass   string `json:"-"`
	SpawnPolicy string `json:"spawnPolicy"`
}

// DefaultConfig mirrors the stock arena settings.
func DefaultConfig() Config {
	return Config{
		Width:                DefaultWidth,
		Height:               DefaultHeight,
		Seed:                 DefaultSeed,
		DefaultPlayerMass:    10,
		FoodMass:             1,
		FireFood:             20,
		LimitSplit:           16,
		SplitSpeed:           25,
		PelletSpeed:          25,
		VirusMassMin:         100,
		VirusMassMax:         150,
		GameMass:             20000,
		MaxFood:              1000,
		MaxVirus:             50,
		SlowBase:             4.5,
		MergeTimer:           15 * time.Second,
		MassLossRate:         1,
		MinMassLoss:          50,
		NetworkUpdateFactor:  40,
		MaxHeartbeatInterval: 5 * time.Second,
		ViewMargin:           20,
		MinEngulfMass:        10,
		AdminPass:            "DEFAULT",
		SpawnPolicy:          SpawnFarthest,
	}
}

// Normalized returns a copy with defaults applied to unset or invalid fields.
func (cfg Config) Normalized() Config {
	def := DefaultConfig()
	n := cfg
	n.Seed = strings.TrimSpace(n.Seed)
	if n.Seed == "" {
		n.Seed = def.Seed
	}
	if n.Width <= 0 {
		n.Width = def.Width
	}
	if n.Height <= 0 {
		n.Height = def.Height
	}
	if n.DefaultPlayerMass <= 0 {
		n.DefaultPlayerMass = def.DefaultPlayerMass
	}
	if n.FoodMass <= 0 {
		n.FoodMass = def.FoodMass
	}
	if n.FireFood <= 0 {
		n.FireFood = def.FireFood
	}
	if n.LimitSplit <= 0 {
		n.LimitSplit = def.LimitSplit
	}
	if n.SplitSpeed <= 0 {
		n.SplitSpeed = def.SplitSpeed
	}
	if n.PelletSpeed <= 0 {
		n.PelletSpeed = def.PelletSpeed
	}
	if n.VirusMassMin <= 0 {
		n.VirusMassMin = def.VirusMassMin
	}
	if n.VirusMassMax < n.VirusMassMin {
		n.VirusMassMax = n.VirusMassMin
	}
	if n.GameMass <= 0 {
		n.GameMass = def.GameMass
	}
	if n.MaxFood <= 0 {
		n.MaxFood = def.MaxFood
	}
	if n.MaxVirus <= 0 {
		n.MaxVirus = def.MaxVirus
	}
	if n.SlowBase <= 1 {
		n.SlowBase = def.SlowBase
	}
	if n.MergeTimer <= 0 {
		n.MergeTimer = def.MergeTimer
	}
	if n.MassLossRate <= 0 {
		n.MassLossRate = def.MassLossRate
	}
	if n.MinMassLoss <= 0 {
		n.MinMassLoss = def.MinMassLoss
	}
	if n.NetworkUpdateFactor <= 0 {
		n.NetworkUpdateFactor = def.NetworkUpdateFactor
	}
	if n.MaxHeartbeatInterval <= 0 {
		n.MaxHeartbeatInterval = def.MaxHeartbeatInterval
	}
	if n.ViewMargin <= 0 {
		n.ViewMargin = def.ViewMargin
	}
	if n.MinEngulfMass <= 0 {
		n.MinEngulfMass = def.MinEngulfMass
	}
	switch n.SpawnPolicy {
	case SpawnFarthest, SpawnRandom:
	default:
		n.SpawnPolicy = def.SpawnPolicy
	}
	return n
}

// BroadcastInterval is the snapshot period derived from NetworkUpdateFactor.
func (cfg Config) BroadcastInterval() time.Duration {
	factor := cfg.NetworkUpdateFactor
	if factor <= 0 {
		factor = DefaultConfig().NetworkUpdateFactor
	}
	return time.Second / time.Duration(factor)
}
