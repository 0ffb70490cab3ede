// Package bench provides reproducible micro-benchmarks for Murk. Run via:
//
//	go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// We measure:
//  1. TickWrite   — per-tick SetField write throughput through a full
//     lockstep Step (ingress sort, propagator pipeline, publish)
//  2. Gather      — observation gather throughput against a published
//     snapshot, whole-space region, no pooling
//  3. GatherPooled — same, with mean pooling over disk regions
//
// Adapted from the teacher's bench/bench_test.go: same b.ReportAllocs()
// + dataset-reused-across-benchmarks shape, Put/Get/GetOrLoad replaced
// with the tick/observe operations this spec actually defines.
//
// © 2025 murk authors. MIT License.
package bench

import (
	"testing"

	"github.com/tachyon-beep/murk/config"
	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/engine"
	"github.com/tachyon-beep/murk/lockstep"
	"github.com/tachyon-beep/murk/observe"
	"github.com/tachyon-beep/murk/propagator"
	"github.com/tachyon-beep/murk/space"
	"github.com/tachyon-beep/murk/stdprop"
)

const (
	gridSide       = 64   // 4096 cells
	cmdsPerTick    = 1024 // write-only workload size
)

const heatField core.FieldId = 0

func newBenchWorld(b *testing.B) (*lockstep.Runtime, space.Space, []core.FieldDef) {
	b.Helper()
	sp, err := space.NewSquare(gridSide, gridSide, space.Connectivity4, space.Absorb)
	if err != nil {
		b.Fatal(err)
	}
	fields := []core.FieldDef{
		{Name: "heat", Kind: core.FieldScalar, Arity: 1, Mutability: core.PerTick, Edge: core.EdgeAbsorb},
	}
	rt, err := config.BuildLockstep(
		config.WithSpace(sp),
		config.WithFields(fields),
		config.WithPropagators([]propagator.Propagator{
			stdprop.Decay{Field: heatField, Rate: 0.05},
		}),
		config.WithDt(1.0),
	)
	if err != nil {
		b.Fatal(err)
	}
	return rt, sp, fields
}

func BenchmarkTickWrite(b *testing.B) {
	rt, sp, _ := newBenchWorld(b)
	cmds := engine.GenerateCommands(sp, heatField, cmdsPerTick, engine.DistUniform, 42)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rt.StepSync(cmds); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGather(b *testing.B) {
	rt, sp, fields := newBenchWorld(b)
	cmds := engine.GenerateCommands(sp, heatField, cmdsPerTick, engine.DistUniform, 7)
	res, err := rt.StepSync(cmds)
	if err != nil {
		b.Fatal(err)
	}

	obsSpec := observe.ObsSpec{
		Entries: []observe.Entry{
			{Field: heatField, Region: observe.RegionRef{Kind: uint8(space.RegionAll)}, Pooling: observe.NoPooling, Dtype: observe.DtypeF32},
		},
	}
	bind := observe.BindKey{}
	plan, err := observe.NewCompiler().Compile(obsSpec, sp, fields, bind)
	if err != nil {
		b.Fatal(err)
	}
	output := make([]float32, plan.OutputLen())
	mask := make([]uint8, plan.MaskLen())

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := observe.Gather(plan, res.Snapshot, bind, output, mask); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGatherPooled(b *testing.B) {
	rt, sp, fields := newBenchWorld(b)
	cmds := engine.GenerateCommands(sp, heatField, cmdsPerTick, engine.DistUniform, 11)
	res, err := rt.StepSync(cmds)
	if err != nil {
		b.Fatal(err)
	}

	center := sp.CanonicalOrdering()[len(sp.CanonicalOrdering())/2]
	obsSpec := observe.ObsSpec{
		Entries: []observe.Entry{
			{
				Field:   heatField,
				Region:  regionDisk(center, 8),
				Pooling: observe.PoolMean,
				Dtype:   observe.DtypeF32,
			},
		},
	}
	bind := observe.BindKey{}
	plan, err := observe.NewCompiler().Compile(obsSpec, sp, fields, bind)
	if err != nil {
		b.Fatal(err)
	}
	output := make([]float32, plan.OutputLen())
	mask := make([]uint8, plan.MaskLen())

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := observe.Gather(plan, res.Snapshot, bind, output, mask); err != nil {
			b.Fatal(err)
		}
	}
}

func regionDisk(center core.Coord, radius float64) observe.RegionRef {
	var c [5]int32
	copy(c[:], center)
	return observe.RegionRef{Kind: uint8(space.RegionDisk), Center: c, Radius: radius, NDims: len(center)}
}
