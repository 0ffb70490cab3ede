package observe

import (
	"math"
	"testing"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/internal/arena"
	"github.com/tachyon-beep/murk/space"
)

func testSpace(t *testing.T) space.Space {
	t.Helper()
	sp, err := space.NewSquare(3, 3, space.Connectivity4, space.Absorb)
	if err != nil {
		t.Fatal(err)
	}
	return sp
}

var testFields = []core.FieldDef{
	{Name: "heat", Kind: core.FieldScalar, Arity: 1, Mutability: core.PerTick},
}

func wholeSpaceEntry() Entry {
	return Entry{Field: 0, Region: RegionRef{Kind: uint8(space.RegionAll)}, Pooling: NoPooling, Dtype: DtypeF32}
}

func TestCompileRejectsLowValidRatio(t *testing.T) {
	sp := testSpace(t)
	c := NewCompiler()
	spec := ObsSpec{Entries: []Entry{
		wholeSpaceEntry(),
		{Field: 99, Region: RegionRef{Kind: uint8(space.RegionAll)}}, // undefined field
		{Field: 99, Region: RegionRef{Kind: uint8(space.RegionAll)}},
		{Field: 99, Region: RegionRef{Kind: uint8(space.RegionAll)}},
	}}
	if _, err := c.Compile(spec, sp, testFields, BindKey{}); err == nil {
		t.Fatal("expected compile to reject a spec whose valid_ratio falls below threshold")
	}
}

func TestCompileAcceptsAllValidEntries(t *testing.T) {
	sp := testSpace(t)
	c := NewCompiler()
	spec := ObsSpec{Entries: []Entry{wholeSpaceEntry()}}
	plan, err := c.Compile(spec, sp, testFields, BindKey{})
	if err != nil {
		t.Fatal(err)
	}
	if plan.OutputLen() != sp.CellCount() {
		t.Fatalf("OutputLen = %d, want %d", plan.OutputLen(), sp.CellCount())
	}
}

func TestCompileDeduplicatesIdenticalConcurrentRequests(t *testing.T) {
	sp := testSpace(t)
	c := NewCompiler()
	spec := ObsSpec{Entries: []Entry{wholeSpaceEntry()}}

	const n = 8
	results := make([]*ObsPlan, n)
	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			results[i], errs[i] = c.Compile(spec, sp, testFields, BindKey{})
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatal(errs[i])
		}
		if results[i] != results[0] {
			t.Fatal("expected every concurrent Compile call to share the identical compiled plan")
		}
	}
}

func publishedSnapshot(t *testing.T, sp space.Space, values []float32) arena.Snapshot {
	t.Helper()
	a, err := arena.New(arena.Config{Fields: testFields, CellCount: sp.CellCount()})
	if err != nil {
		t.Fatal(err)
	}
	guard, err := a.BeginTick()
	if err != nil {
		t.Fatal(err)
	}
	buf, err := guard.Writer(0)
	if err != nil {
		t.Fatal(err)
	}
	copy(buf, values)
	if err := a.Publish(0, 0); err != nil {
		t.Fatal(err)
	}
	return a.Snapshot()
}

func TestGatherWholeSpaceMatchesFieldData(t *testing.T) {
	sp := testSpace(t)
	c := NewCompiler()
	spec := ObsSpec{Entries: []Entry{wholeSpaceEntry()}}
	plan, err := c.Compile(spec, sp, testFields, BindKey{})
	if err != nil {
		t.Fatal(err)
	}
	values := make([]float32, sp.CellCount())
	for i := range values {
		values[i] = float32(i)
	}
	snap := publishedSnapshot(t, sp, values)

	output := make([]float32, plan.OutputLen())
	mask := make([]uint8, plan.MaskLen())
	if err := Gather(plan, snap, BindKey{}, output, mask); err != nil {
		t.Fatal(err)
	}
	for i, v := range output {
		if v != values[i] {
			t.Fatalf("output[%d] = %v, want %v", i, v, values[i])
		}
		if mask[i] != 1 {
			t.Fatalf("mask[%d] = %v, want 1", i, mask[i])
		}
	}
}

func TestCompileRejectsInvalidNormalizeTransform(t *testing.T) {
	sp := testSpace(t)
	c := NewCompiler()
	entry := wholeSpaceEntry()
	entry.Transform = Transform{Kind: Normalize, Min: 5, Max: 1} // inverted range
	spec := ObsSpec{Entries: []Entry{entry}}
	if _, err := c.Compile(spec, sp, testFields, BindKey{}); err == nil {
		t.Fatal("expected compile to reject an entry with an invalid Normalize transform")
	}
}

func TestGatherRectNonOriginReadsCanonicalRankNotOutputIndex(t *testing.T) {
	sp := testSpace(t) // 3x3 Square4
	c := NewCompiler()
	rectEntry := Entry{
		Field: 0,
		Region: RegionRef{
			Kind: uint8(space.RegionRect), NDims: 2,
			Min: [5]int32{1, 1}, Max: [5]int32{2, 2},
		},
		Pooling: NoPooling,
	}
	spec := ObsSpec{Entries: []Entry{rectEntry}}
	plan, err := c.Compile(spec, sp, testFields, BindKey{})
	if err != nil {
		t.Fatal(err)
	}

	// One value per canonical-ranked cell, distinct from its coordinate so
	// a wrong index is easy to spot: value == canonical rank.
	values := make([]float32, sp.CellCount())
	for i := range values {
		values[i] = float32(i)
	}
	snap := publishedSnapshot(t, sp, values)

	output := make([]float32, plan.OutputLen())
	mask := make([]uint8, plan.MaskLen())
	if err := Gather(plan, snap, BindKey{}, output, mask); err != nil {
		t.Fatal(err)
	}

	// Rect{(1,1)-(2,2)} over a 3x3 grid enumerates (1,1),(1,2),(2,1),(2,2)
	// in row-major order, i.e. canonical ranks 4, 7, 5, 8.
	wantRanks := []float32{4, 7, 5, 8}
	for i, want := range wantRanks {
		if mask[i] != 1 {
			t.Fatalf("mask[%d] = %v, want 1", i, mask[i])
		}
		if output[i] != want {
			t.Fatalf("output[%d] = %v, want field value at canonical rank %v (got cell at the wrong index)", i, output[i], want)
		}
	}
}

func TestGatherDiskNonOriginReadsCanonicalRankNotOutputIndex(t *testing.T) {
	sp := testSpace(t) // 3x3 Square4
	c := NewCompiler()
	diskEntry := Entry{
		Field: 0,
		Region: RegionRef{
			Kind: uint8(space.RegionDisk), NDims: 2,
			Center: [5]int32{2, 2}, Radius: 1,
		},
		Pooling: NoPooling,
	}
	spec := ObsSpec{Entries: []Entry{diskEntry}}
	plan, err := c.Compile(spec, sp, testFields, BindKey{})
	if err != nil {
		t.Fatal(err)
	}

	values := make([]float32, sp.CellCount())
	for i := range values {
		values[i] = float32(i)
	}
	snap := publishedSnapshot(t, sp, values)

	output := make([]float32, plan.OutputLen())
	mask := make([]uint8, plan.MaskLen())
	if err := Gather(plan, snap, BindKey{}, output, mask); err != nil {
		t.Fatal(err)
	}

	// Every valid cell's output value must equal its own canonical rank
	// (the field was seeded with value == rank); a padding cell must carry
	// mask 0 regardless of whatever garbage sits in output.
	for i, m := range mask {
		coordAt := plan.entries[0].regionPlan.Coords[i]
		rank, ok := sp.CanonicalRank(coordAt)
		if m == 1 {
			if !ok {
				t.Fatalf("cell %d marked valid but canonical rank lookup failed for coord %v", i, coordAt)
			}
			if output[i] != float32(rank) {
				t.Fatalf("output[%d] = %v, want field value at canonical rank %d (coord %v)", i, output[i], rank, coordAt)
			}
		}
	}
	// Centre cell (2,2) must be present and valid.
	centreRank, _ := sp.CanonicalRank(core.Coord{2, 2})
	foundCentre := false
	for i, m := range mask {
		if m == 1 && output[i] == float32(centreRank) {
			foundCentre = true
		}
	}
	if !foundCentre {
		t.Fatal("expected the disk's centre cell to appear as a valid gathered cell")
	}
}

func TestGatherRejectsBufferLengthMismatch(t *testing.T) {
	sp := testSpace(t)
	c := NewCompiler()
	spec := ObsSpec{Entries: []Entry{wholeSpaceEntry()}}
	plan, err := c.Compile(spec, sp, testFields, BindKey{})
	if err != nil {
		t.Fatal(err)
	}
	snap := publishedSnapshot(t, sp, make([]float32, sp.CellCount()))
	if err := Gather(plan, snap, BindKey{}, make([]float32, 1), make([]uint8, 1)); err == nil {
		t.Fatal("expected Gather to reject an undersized output buffer")
	}
}

func TestGatherRejectsStaleBindKey(t *testing.T) {
	sp := testSpace(t)
	c := NewCompiler()
	spec := ObsSpec{Entries: []Entry{wholeSpaceEntry()}}
	plan, err := c.Compile(spec, sp, testFields, BindKey{WorldGeneration: 1})
	if err != nil {
		t.Fatal(err)
	}
	snap := publishedSnapshot(t, sp, make([]float32, sp.CellCount()))
	output := make([]float32, plan.OutputLen())
	mask := make([]uint8, plan.MaskLen())
	err = Gather(plan, snap, BindKey{WorldGeneration: 2}, output, mask)
	if err == nil {
		t.Fatal("expected Gather to reject a bind key that no longer matches the compiled plan")
	}
}

func TestGatherUnwrittenFieldReportsZeroMask(t *testing.T) {
	sp := testSpace(t)
	c := NewCompiler()
	spec := ObsSpec{Entries: []Entry{wholeSpaceEntry()}}
	plan, err := c.Compile(spec, sp, testFields, BindKey{})
	if err != nil {
		t.Fatal(err)
	}
	a, err := arena.New(arena.Config{Fields: testFields, CellCount: sp.CellCount()})
	if err != nil {
		t.Fatal(err)
	}
	// Never published: field 0 is unallocated.
	snap := a.Snapshot()
	output := make([]float32, plan.OutputLen())
	mask := make([]uint8, plan.MaskLen())
	if err := Gather(plan, snap, BindKey{}, output, mask); err != nil {
		t.Fatal(err)
	}
	for i, m := range mask {
		if m != 0 {
			t.Fatalf("mask[%d] = %v, want 0 for an unwritten field", i, m)
		}
	}
}

func TestGatherBatchValidatesBeforeTouchingAnySnapshot(t *testing.T) {
	sp := testSpace(t)
	c := NewCompiler()
	spec := ObsSpec{Entries: []Entry{wholeSpaceEntry()}}
	plan, err := c.Compile(spec, sp, testFields, BindKey{})
	if err != nil {
		t.Fatal(err)
	}
	snaps := []Snapshot{
		publishedSnapshot(t, sp, make([]float32, sp.CellCount())),
		publishedSnapshot(t, sp, make([]float32, sp.CellCount())),
	}
	// Undersized buffer for 2 snapshots.
	err = GatherBatch(plan, snaps, BindKey{}, make([]float32, plan.OutputLen()), make([]uint8, plan.MaskLen()))
	if err == nil {
		t.Fatal("expected GatherBatch to reject an output buffer sized for only one snapshot")
	}
}

func TestGatherBatchFillsEachSnapshotsSlice(t *testing.T) {
	sp := testSpace(t)
	c := NewCompiler()
	spec := ObsSpec{Entries: []Entry{wholeSpaceEntry()}}
	plan, err := c.Compile(spec, sp, testFields, BindKey{})
	if err != nil {
		t.Fatal(err)
	}
	v1 := make([]float32, sp.CellCount())
	v2 := make([]float32, sp.CellCount())
	for i := range v2 {
		v2[i] = 1
	}
	snaps := []Snapshot{publishedSnapshot(t, sp, v1), publishedSnapshot(t, sp, v2)}

	output := make([]float32, 2*plan.OutputLen())
	mask := make([]uint8, 2*plan.MaskLen())
	if err := GatherBatch(plan, snaps, BindKey{}, output, mask); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < plan.OutputLen(); i++ {
		if output[i] != 0 {
			t.Fatalf("world 0 output[%d] = %v, want 0", i, output[i])
		}
		if output[plan.OutputLen()+i] != 1 {
			t.Fatalf("world 1 output[%d] = %v, want 1", i, output[plan.OutputLen()+i])
		}
	}
}

func TestReducePoolMeanIgnoresInvalidAndNaN(t *testing.T) {
	field := []float32{1, float32(math.NaN()), 3, 100}
	ranks := []int{0, 1, 2, 3}
	mask := []uint8{1, 1, 1, 0}
	v, ok := reduce(PoolMean, field, ranks, mask)
	if !ok {
		t.Fatal("expected mean to have contributions")
	}
	want := (1.0 + 3.0) / 2.0
	if math.Abs(v-want) > 1e-9 {
		t.Fatalf("mean = %v, want %v", v, want)
	}
}

func TestReducePoolMeanNoContributionIsNaN(t *testing.T) {
	field := []float32{1, 2}
	ranks := []int{0, 1}
	mask := []uint8{0, 0}
	v, ok := reduce(PoolMean, field, ranks, mask)
	if ok {
		t.Fatal("expected no contribution")
	}
	if !math.IsNaN(v) {
		t.Fatalf("expected NaN for zero-contribution mean, got %v", v)
	}
}

func TestReducePoolSumNoContributionIsZero(t *testing.T) {
	v, ok := reduce(PoolSum, []float32{5}, []int{0}, []uint8{0})
	if ok {
		t.Fatal("expected no contribution")
	}
	if v != 0 {
		t.Fatalf("expected 0 identity for zero-contribution sum, got %v", v)
	}
}

func TestTransformValidateRejectsInvertedRange(t *testing.T) {
	tr := Transform{Kind: Normalize, Min: 5, Max: 1}
	if tr.Validate() {
		t.Fatal("expected Normalize with min > max to be invalid")
	}
}

func TestTransformValidateAcceptsIdentity(t *testing.T) {
	if !(Transform{Kind: Identity}).Validate() {
		t.Fatal("expected Identity transform to always validate")
	}
}

func TestApplyTransformNormalize(t *testing.T) {
	got := applyTransform(Transform{Kind: Normalize, Min: 0, Max: 10}, 5)
	if got != 0.5 {
		t.Fatalf("normalize(5, [0,10]) = %v, want 0.5", got)
	}
}
