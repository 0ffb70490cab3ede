package observe

import (
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/space"
)

// BindKey ties a compiled ObsPlan to the exact world/field/space
// generation it was compiled against (spec §4.4: "Plans carry a
// (world_generation, field_layout_generation, space_topology_generation)
// bind key"). Any change to any of the three invalidates every plan bound
// to the old key.
type BindKey struct {
	WorldGeneration         core.Generation
	FieldLayoutGeneration   uint64
	SpaceTopologyGeneration uint64
}

// compiledEntry is one Entry after region compilation, carrying the
// output/mask buffer offsets Gather writes into.
type compiledEntry struct {
	src          Entry
	fieldValid   bool
	regionPlan   space.RegionPlan
	outputOffset int
	outputLen    int
	maskOffset   int
	maskLen      int
}

// ObsPlan is the compiled, reusable form of an ObsSpec (spec §4.4).
type ObsPlan struct {
	bind       BindKey
	entries    []compiledEntry
	outputLen  int
	maskLen    int
	validRatio float64
}

// Bind returns the generation triple this plan was compiled against.
func (p *ObsPlan) Bind() BindKey { return p.bind }

// OutputLen is the total length the caller's output buffer must have.
func (p *ObsPlan) OutputLen() int { return p.outputLen }

// MaskLen is the total length the caller's mask buffer must have.
func (p *ObsPlan) MaskLen() int { return p.maskLen }

// minValidRatio is the plan-rejection threshold of spec §4.4.
const minValidRatio = 0.35

func entryOutputLen(e Entry, regionLen int) int {
	if e.Pooling == NoPooling {
		return regionLen
	}
	return 1
}

func regionSpecOf(r RegionRef) space.RegionSpec {
	toCoord := func(a [5]int32, n int) core.Coord {
		c := make(core.Coord, n)
		copy(c, a[:n])
		return c
	}
	switch space.RegionKind(r.Kind) {
	case space.RegionRect:
		return space.RegionSpec{Kind: space.RegionRect, Min: toCoord(r.Min, r.NDims), Max: toCoord(r.Max, r.NDims)}
	case space.RegionDisk:
		return space.RegionSpec{Kind: space.RegionDisk, Center: toCoord(r.Center, r.NDims), Radius: r.Radius}
	case space.RegionNeighbours:
		return space.RegionSpec{Kind: space.RegionNeighbours, Center: toCoord(r.Center, r.NDims), Radius: r.Radius}
	default:
		return space.RegionSpec{Kind: space.RegionAll}
	}
}

// compile builds an ObsPlan without any caching; Compiler.Compile wraps
// this with singleflight de-duplication.
func compile(spec ObsSpec, sp space.Space, fields []core.FieldDef, bind BindKey) (*ObsPlan, error) {
	plan := &ObsPlan{bind: bind, entries: make([]compiledEntry, len(spec.Entries))}
	validCount := 0
	outOff, maskOff := 0, 0

	for i, e := range spec.Entries {
		if !e.Transform.Validate() {
			return nil, core.NewError(core.KindInvalidSpec, "observation entry transform is invalid (Normalize requires finite min < max)")
		}

		ce := compiledEntry{src: e}
		ce.fieldValid = int(e.Field) < len(fields)

		rp, err := sp.CompileRegion(regionSpecOf(e.Region))
		regionValid := err == nil
		if regionValid {
			ce.regionPlan = rp
		}

		if ce.fieldValid && regionValid {
			validCount++
		}

		outLen := 0
		if regionValid {
			outLen = entryOutputLen(e, rp.Len())
		}
		maskLen := outLen

		ce.outputOffset = outOff
		ce.outputLen = outLen
		ce.maskOffset = maskOff
		ce.maskLen = maskLen
		outOff += outLen
		maskOff += maskLen

		plan.entries[i] = ce
	}

	plan.outputLen = outOff
	plan.maskLen = maskOff
	if len(spec.Entries) > 0 {
		plan.validRatio = float64(validCount) / float64(len(spec.Entries))
	} else {
		plan.validRatio = 1
	}

	if plan.validRatio < minValidRatio {
		return nil, core.NewError(core.KindInvalidSpec, "observation plan valid_ratio below threshold")
	}
	return plan, nil
}

// cacheKey builds a deterministic singleflight key from spec + bind, so
// two compile requests for the identical (spec, generation-triple) pair
// collapse into one compilation, mirroring the teacher's loaderGroup key
// scheme (pkg/loader.go: formatted hash as the singleflight key).
func cacheKey(spec ObsSpec, bind BindKey) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%d|%d|", bind.WorldGeneration, bind.FieldLayoutGeneration, bind.SpaceTopologyGeneration)
	for _, e := range spec.Entries {
		fmt.Fprintf(&b, "f%d:k%d:p%d:t%d:%g:%g:d%d:r%d:%v:%v:%v:%g|",
			e.Field, e.Region.Kind, e.Pooling, e.Transform.Kind, e.Transform.Min, e.Transform.Max,
			e.Dtype, e.Region.NDims, e.Region.Min, e.Region.Max, e.Region.Center, e.Region.Radius)
	}
	return b.String()
}

// Compiler compiles ObsSpecs into ObsPlans, de-duplicating concurrent
// compilation of the identical (spec, bind key) pair via singleflight —
// generalized from the teacher's loaderGroup (pkg/loader.go), which
// de-duplicates concurrent cache loads the same way.
type Compiler struct {
	group singleflight.Group
}

// NewCompiler constructs an empty Compiler.
func NewCompiler() *Compiler { return &Compiler{} }

// Compile compiles spec against sp/fields under bind, sharing in-flight
// compilation across concurrent callers requesting the identical key.
func (c *Compiler) Compile(spec ObsSpec, sp space.Space, fields []core.FieldDef, bind BindKey) (*ObsPlan, error) {
	key := cacheKey(spec, bind)
	v, err, _ := c.group.Do(key, func() (any, error) {
		return compile(spec, sp, fields, bind)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ObsPlan), nil
}
