package engine

// testdata_gen.go generates deterministic synthetic command batches for
// engine tests and benchmarks.
//
// Adapted from the teacher's tools/dataset_gen/dataset_gen.go: same
// seeded-PRNG, distribution-selectable generation idea (uniform or Zipf),
// repurposed from emitting a flat key dataset for an external load tester
// into emitting in-process *core.Command batches — the CLI flag wrapper
// around it is dropped since command-line tooling is out of scope here.
//
// © 2025 murk authors. MIT License.

import (
	"math/rand"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/space"
)

// CommandDist selects how GenerateCommands distributes coordinates across
// the space's cells.
type CommandDist int

const (
	// DistUniform picks cells uniformly at random.
	DistUniform CommandDist = iota
	// DistZipf concentrates commands onto a small hot set of low-rank
	// cells, mimicking the contention pattern the teacher's dataset_gen
	// used Zipf for (a minority of keys receiving the majority of
	// traffic).
	DistZipf
)

// GenerateCommands produces n deterministic SetField commands against sp,
// writing field fieldId, seeded by seed. Every command's coordinate is
// sp.CanonicalOrdering()[rank] for some rank chosen per dist, so the
// output is always in-bounds regardless of topology.
func GenerateCommands(sp space.Space, fieldId core.FieldId, n int, dist CommandDist, seed int64) []*core.Command {
	ordering := sp.CanonicalOrdering()
	if len(ordering) == 0 || n <= 0 {
		return nil
	}

	rnd := rand.New(rand.NewSource(seed))
	var rank func() uint64
	switch dist {
	case DistZipf:
		z := rand.NewZipf(rnd, 1.2, 1.0, uint64(len(ordering)-1))
		rank = z.Uint64
	default:
		rank = func() uint64 { return uint64(rnd.Intn(len(ordering))) }
	}

	cmds := make([]*core.Command, n)
	for i := 0; i < n; i++ {
		r := int(rank())
		if r >= len(ordering) {
			r = len(ordering) - 1
		}
		cmds[i] = &core.Command{
			Payload: core.PayloadSetField,
			SetField: core.SetFieldPayload{
				Coord: ordering[r].Clone(),
				Field: fieldId,
				Value: rnd.Float64(),
			},
			PriorityClass: core.PriorityClass(rnd.Intn(4)),
		}
	}
	return cmds
}
