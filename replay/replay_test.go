package replay

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/tachyon-beep/murk/core"
	"github.com/tachyon-beep/murk/internal/arena"
)

var testFields = []core.FieldDef{
	{Name: "f", Kind: core.FieldScalar, Arity: 1, Mutability: core.PerTick},
}

func publishedSnapshot(t *testing.T, values []float32) arena.Snapshot {
	t.Helper()
	a, err := arena.New(arena.Config{Fields: testFields, CellCount: len(values)})
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
	if err := a.Publish(1, 0); err != nil {
		t.Fatal(err)
	}
	return a.Snapshot()
}

func TestHashIsPureFunctionOfFieldData(t *testing.T) {
	s1 := publishedSnapshot(t, []float32{1, 2, 3})
	s2 := publishedSnapshot(t, []float32{1, 2, 3})
	if Hash(s1) != Hash(s2) {
		t.Fatal("expected bit-identical field data to hash identically regardless of generation/tick")
	}
}

func TestHashDiffersOnDifferentData(t *testing.T) {
	s1 := publishedSnapshot(t, []float32{1, 2, 3})
	s2 := publishedSnapshot(t, []float32{1, 2, 4})
	if Hash(s1) == Hash(s2) {
		t.Fatal("expected different field data to hash differently")
	}
}

func TestHashDistinguishesAbsentFromZeroLength(t *testing.T) {
	// A never-published arena has field 0 unallocated ("absent"); a
	// published arena with a zero-length field (CellCount 0) is
	// "present but empty". These must not collide.
	unpublished, err := arena.New(arena.Config{Fields: testFields, CellCount: 0})
	if err != nil {
		t.Fatal(err)
	}
	absentHash := Hash(unpublished.Snapshot())

	zeroLen, err := arena.New(arena.Config{Fields: testFields, CellCount: 0})
	if err != nil {
		t.Fatal(err)
	}
	guard, err := zeroLen.BeginTick()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := guard.Writer(0); err != nil {
		t.Fatal(err)
	}
	if err := zeroLen.Publish(1, 0); err != nil {
		t.Fatal(err)
	}
	presentHash := Hash(zeroLen.Snapshot())

	if absentHash == presentHash {
		t.Fatal("expected an absent field and a present-but-zero-length field to hash differently")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	runId := uuid.New()
	w := NewWriter(&buf, runId)

	srcId := uint64(7)
	srcSeq := uint64(2)
	frame := Frame{
		TickId:           10,
		ParameterVersion: 3,
		Commands: []*core.Command{
			{
				Payload:          core.PayloadSetField,
				SetField:         core.SetFieldPayload{Coord: core.Coord{1, 2}, Field: 0, Value: 3.5},
				ExpiresAfterTick: 99,
				SourceId:         &srcId,
				SourceSeq:        &srcSeq,
				PriorityClass:    2,
				ArrivalSeq:       55,
			},
			{
				Payload:      core.PayloadSetParameter,
				SetParameter: core.SetParameterPayload{Key: 4, Value: 1.25},
				ArrivalSeq:   56,
			},
		},
		SnapshotHash: 0xdeadbeef,
	}
	if err := w.Write(frame); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	gotRunId, err := r.ReadHeader()
	if err != nil {
		t.Fatal(err)
	}
	if gotRunId != runId {
		t.Fatalf("run id = %v, want %v", gotRunId, runId)
	}

	got, err := r.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if got.TickId != frame.TickId || got.ParameterVersion != frame.ParameterVersion || got.SnapshotHash != frame.SnapshotHash {
		t.Fatalf("frame header mismatch: got %+v", got)
	}
	if len(got.Commands) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(got.Commands))
	}
	c0 := got.Commands[0]
	if !c0.SetField.Coord.Equal(core.Coord{1, 2}) || c0.SetField.Value != 3.5 {
		t.Fatalf("SetField command mismatch: %+v", c0)
	}
	if c0.SourceId == nil || *c0.SourceId != 7 || c0.SourceSeq == nil || *c0.SourceSeq != 2 {
		t.Fatalf("expected source id/seq to round-trip, got %+v", c0)
	}
	c1 := got.Commands[1]
	if c1.SetParameter.Key != 4 || c1.SetParameter.Value != 1.25 {
		t.Fatalf("SetParameter command mismatch: %+v", c1)
	}

	if _, err := r.ReadFrame(); err != io.EOF {
		t.Fatalf("expected io.EOF at stream end, got %v", err)
	}
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("XXXX")
	r := NewReader(buf)
	if _, err := r.ReadHeader(); err == nil {
		t.Fatal("expected an error for a stream with the wrong magic header")
	}
}

func TestReadHeaderRejectsUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.WriteByte(FormatVersion + 1)
	r := NewReader(&buf)
	if _, err := r.ReadHeader(); err == nil {
		t.Fatal("expected an error for an unsupported format version")
	}
}

func TestReadFrameRejectsCommandCountBeyondMaximum(t *testing.T) {
	var buf bytes.Buffer
	runId := uuid.New()
	w := NewWriter(&buf, runId)
	if err := w.writeHeader(); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	// Hand-craft a frame header claiming an over-limit command count.
	var u64 [8]byte
	buf.Write(u64[:]) // tick_id
	buf.Write(u64[:]) // parameter_version
	var u32 [4]byte
	u32[3] = 0xFF // a huge count when combined with the other bytes
	u32[2] = 0xFF
	u32[1] = 0xFF
	u32[0] = 0xFF
	buf.Write(u32[:])

	r := NewReader(&buf)
	if _, err := r.ReadHeader(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReadFrame(); err == nil {
		t.Fatal("expected MalformedFrame for a command_count beyond the per-frame maximum")
	}
}

func TestReadCommandRejectsCoordDimsBeyondMaximum(t *testing.T) {
	var buf bytes.Buffer
	runId := uuid.New()
	w := NewWriter(&buf, runId)
	frame := Frame{
		TickId: 1,
		Commands: []*core.Command{
			{Payload: core.PayloadSetField, SetField: core.SetFieldPayload{Coord: core.Coord{1}, Field: 0, Value: 1}},
		},
	}
	if err := w.Write(frame); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	raw := buf.Bytes()
	// Locate the dims field: header(4+1+16) + tick_id(8) + param_ver(8) +
	// command_count(4) + payload_kind(1) == offset of the dims uint32.
	dimsOffset := 4 + 1 + 16 + 8 + 8 + 4 + 1
	corrupted := make([]byte, len(raw))
	copy(corrupted, raw)
	corrupted[dimsOffset] = 0xFF
	corrupted[dimsOffset+1] = 0xFF
	corrupted[dimsOffset+2] = 0xFF
	corrupted[dimsOffset+3] = 0x00

	r := NewReader(bytes.NewReader(corrupted))
	if _, err := r.ReadHeader(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReadFrame(); err == nil {
		t.Fatal("expected MalformedFrame for coordinate dimensionality beyond the decodable maximum")
	}
}
