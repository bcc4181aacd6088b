package config

import (
	"fmt"
	"sort"

	"github.com/harvard-visionlab/block-towers/internal/generator"
)

// Preset holds generator settings per tower height.
type Preset struct {
	Description string
	Heights     map[int]generator.Params
}

// Presets: "natural" uses a per-height std that yields roughly half unstable
// towers; "fixed" keeps one std for all heights, so tall towers need more
// candidates to fill a balanced batch.
var Presets = map[string]*Preset{
	"natural": {
		Description: "per-height std giving ~50% unstable towers",
		Heights: map[int]generator.Params{
			3: {NumBlocks: 3, SideLength: 0.40, Std: 0.350, Truncate: 0.75},
			4: {NumBlocks: 4, SideLength: 0.40, Std: 0.280, Truncate: 0.65},
			5: {NumBlocks: 5, SideLength: 0.40, Std: 0.165, Truncate: 0.65},
			6: {NumBlocks: 6, SideLength: 0.40, Std: 0.130, Truncate: 0.65},
		},
	},
	"fixed": {
		Description: "same std for every height",
		Heights: map[int]generator.Params{
			3: {NumBlocks: 3, SideLength: 0.40, Std: 0.350, Truncate: 0.60},
			4: {NumBlocks: 4, SideLength: 0.40, Std: 0.350, Truncate: 0.60},
			5: {NumBlocks: 5, SideLength: 0.40, Std: 0.350, Truncate: 0.60},
			6: {NumBlocks: 6, SideLength: 0.40, Std: 0.350, Truncate: 0.60},
		},
	},
}

func GetPreset(name string) *Preset {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedHeights lists the heights the preset covers in ascending order.
func (p *Preset) SortedHeights() []int {
	hs := make([]int, 0, len(p.Heights))
	for h := range p.Heights {
		hs = append(hs, h)
	}
	sort.Ints(hs)
	return hs
}

// Params returns the generator settings for one height.
func (p *Preset) Params(height int) (generator.Params, error) {
	params, ok := p.Heights[height]
	if !ok {
		return generator.Params{}, fmt.Errorf("no settings for height %d (have %v)", height, p.SortedHeights())
	}
	return params, nil
}
